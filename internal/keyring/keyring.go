// Package keyring 把论坛密码保存在系统钥匙串里，按用户名区分。
package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

const Service = "fn-signer"

var (
	ErrNotFound           = errors.New("password not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func GetPassword(username string) (string, error) {
	if username == "" {
		return "", errors.New("username cannot be empty")
	}
	pw, err := gokeyring.Get(Service, username)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return pw, nil
}

func SetPassword(username, password string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if err := gokeyring.Set(Service, username, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

func DeletePassword(username string) error {
	err := gokeyring.Delete(Service, username)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}
