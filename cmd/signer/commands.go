package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/rangdl/FN-AQ/internal/engine"
	"github.com/rangdl/FN-AQ/internal/keyring"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/notify"
	"github.com/rangdl/FN-AQ/internal/store/sqlite"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type RunCmd struct{}

func (cmd *RunCmd) Run(g *Globals) error {
	a, err := g.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	creds := credentials(a.cfg.Account, keyring.GetPassword, a.bus)

	var history engine.RunRecorder
	store, err := sqlite.Open(g.Ctx, a.cfg.Storage.SQLitePath)
	if err != nil {
		a.bus.Log("warn", "run history disabled", map[string]any{"error": err.Error()})
	} else {
		defer store.Close()
		history = store
	}

	auto := engine.New(engine.Options{
		Site:        a.site,
		Credentials: creds,
		Retry:       a.cfg.Retry,
		Sessions:    a.sessions,
		Notifier:    notify.FromConfig(a.cfg.Notify, nil, a.bus),
		History:     history,
		Bus:         a.bus,
	})
	res := auto.Run(g.Ctx)
	if !res.OK {
		if errors.Is(res.Err, engine.ErrNoCredentials) {
			return configError(res.Err)
		}
		return res.Err
	}
	return nil
}

type VersionCmd struct{}

func (cmd *VersionCmd) Run() error {
	fmt.Println("signer " + version)
	return nil
}

type StatusCmd struct{}

func (cmd *StatusCmd) Run(g *Globals) error {
	a, err := g.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.site.IsAuthenticated(g.Ctx) {
		fmt.Println(failStyle.Render("session invalid") + " (run `signer run` to log in)")
		return errors.New("not authenticated")
	}
	fmt.Println(okStyle.Render("session valid"))

	st, err := a.site.Status(g.Ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s (%s)\n", keyStyle.Render("check-in:"), st.Label, st.Status)

	sum, err := a.site.Summary(g.Ctx)
	if err != nil {
		return err
	}
	for _, it := range sum {
		fmt.Printf("%s %s\n", keyStyle.Render(it.Key+":"), it.Value)
	}
	return nil
}

type HistoryCmd struct {
	Limit int `help:"Number of runs to show." default:"10" short:"n"`
}

func (cmd *HistoryCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(g.Ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(g.Ctx, cmd.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}
	fmt.Println(historyTable(runs, isatty.IsTerminal(os.Stdout.Fd())))

	last, ok, err := store.LastSuccess(g.Ctx)
	if err != nil {
		return err
	}
	fmt.Println(lastSuccessLine(last, ok))
	return nil
}

// lastSuccessLine 汇总最近一次成功的运行，它可能早于上面表格里的记录。
func lastSuccessLine(r model.RunRecord, ok bool) string {
	if !ok {
		return "last success: never"
	}
	line := fmt.Sprintf("last success: %s (%s)", r.StartedAt.Format("2006-01-02 15:04:05"), r.Username)
	if r.Label != "" {
		line += " " + r.Label
	}
	return line
}

func historyTable(runs []model.RunRecord, color bool) string {
	t := table.New().
		Headers("STARTED", "USER", "RESULT", "STATE", "LABEL", "ERROR")
	for _, r := range runs {
		result := "ok"
		if r.CheckedIn {
			result = "signed"
		}
		if !r.Success {
			result = "failed"
		}
		t.Row(
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Username,
			result,
			string(r.State),
			r.Label,
			truncate(r.Error, 60),
		)
	}
	if color {
		t.StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 2 && row >= 0 && row < len(runs) {
				if runs[row].Success {
					return s.Inherit(okStyle)
				}
				return s.Inherit(failStyle)
			}
			return s
		})
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

type KeyringSetCmd struct {
	Username string `arg:"" optional:"" help:"Forum username (defaults to account.username)."`
	Password string `help:"Password to store; read from FN_PASSWORD when omitted." env:"FN_PASSWORD"`
}

func (cmd *KeyringSetCmd) Run(g *Globals) error {
	user, err := keyringUser(g, cmd.Username)
	if err != nil {
		return err
	}
	if cmd.Password == "" {
		return configError(errors.New("password is required (--password or FN_PASSWORD)"))
	}
	if err := keyring.SetPassword(user, cmd.Password); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("✓") + " password stored for " + strconv.Quote(user))
	return nil
}

type KeyringDeleteCmd struct {
	Username string `arg:"" optional:"" help:"Forum username (defaults to account.username)."`
}

func (cmd *KeyringDeleteCmd) Run(g *Globals) error {
	user, err := keyringUser(g, cmd.Username)
	if err != nil {
		return err
	}
	if err := keyring.DeletePassword(user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no password stored for %q", user)
		}
		return err
	}
	fmt.Println(okStyle.Render("✓") + " password removed for " + strconv.Quote(user))
	return nil
}

func keyringUser(g *Globals, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Account.Username == "" {
		return "", configError(errors.New("username is required (argument, account.username or FN_USERNAME)"))
	}
	return cfg.Account.Username, nil
}
