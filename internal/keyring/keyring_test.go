package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetPassword(t *testing.T) {
	gokeyring.MockInit()

	if err := SetPassword("alice", "s3cret"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	got, err := GetPassword("alice")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("GetPassword = %q, want %q", got, "s3cret")
	}
	if _, err := GetPassword("bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPassword(bob) error = %v, want ErrNotFound", err)
	}
}

func TestSetPasswordValidation(t *testing.T) {
	gokeyring.MockInit()

	if err := SetPassword("", "x"); err == nil {
		t.Error("empty username should fail")
	}
	if err := SetPassword("alice", ""); err == nil {
		t.Error("empty password should fail")
	}
}

func TestDeletePassword(t *testing.T) {
	gokeyring.MockInit()

	if err := SetPassword("alice", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if err := DeletePassword("alice"); err != nil {
		t.Fatalf("DeletePassword: %v", err)
	}
	if _, err := GetPassword("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete error = %v, want ErrNotFound", err)
	}
	if err := DeletePassword("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestKeyringUnavailable(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("dbus down"))
	defer gokeyring.MockInit()

	if _, err := GetPassword("alice"); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("error = %v, want ErrKeyringUnavailable", err)
	}
}
