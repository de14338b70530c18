// Package service controls the bot's systemd unit over D-Bus.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("botctl.service")

const DefaultUnitDir = "/etc/systemd/system"

// DBusAPI is the slice of the systemd D-Bus connection this package uses,
// kept as an interface so tests can stub it.
type DBusAPI interface {
	Close()
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
}

var NewDBusAPI = func(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

// UnitConf describes the rendered unit file.
type UnitConf struct {
	Description string
	ExecStart   string
	WorkingDir  string
	User        string
	Environment map[string]string
}

// Systemd manages one named service unit.
type Systemd struct {
	name     string
	unitName string
	unitDir  string
	newDBus  func(ctx context.Context) (DBusAPI, error)
}

func New(name string) *Systemd {
	return &Systemd{
		name:     name,
		unitName: name + ".service",
		unitDir:  DefaultUnitDir,
		newDBus:  NewDBusAPI,
	}
}

func (s *Systemd) Name() string     { return s.name }
func (s *Systemd) UnitName() string { return s.unitName }

func (s *Systemd) UnitPath() string {
	return filepath.Join(s.unitDir, s.unitName)
}

// Install writes the unit file, reloads the daemon, and enables the unit.
func (s *Systemd) Install(ctx context.Context, conf UnitConf) error {
	if strings.TrimSpace(conf.ExecStart) == "" {
		return fmt.Errorf("service %s: exec_start is required to install", s.name)
	}

	if err := os.MkdirAll(s.unitDir, 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(s.UnitPath(), []byte(renderUnit(s.name, conf)), 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{s.unitName}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", s.unitName, err)
	}

	logger.Infof("installed unit %s at %s", s.unitName, s.UnitPath())
	return nil
}

// Uninstall stops the unit best-effort, disables it, removes the unit file,
// and reloads the daemon.
func (s *Systemd) Uninstall(ctx context.Context) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := runJob(ctx, conn.StopUnitContext, s.unitName); err != nil {
		logger.Warningf("stop %s during uninstall: %v", s.unitName, err)
	}
	if _, err := conn.DisableUnitFilesContext(ctx, []string{s.unitName}, false); err != nil {
		logger.Warningf("disable %s during uninstall: %v", s.unitName, err)
	}

	if err := os.Remove(s.UnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}

	logger.Infof("uninstalled unit %s", s.unitName)
	return nil
}

func (s *Systemd) Start(ctx context.Context) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := runJob(ctx, conn.StartUnitContext, s.unitName); err != nil {
		return fmt.Errorf("start %s: %w", s.unitName, err)
	}
	return nil
}

func (s *Systemd) Stop(ctx context.Context) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := runJob(ctx, conn.StopUnitContext, s.unitName); err != nil {
		return fmt.Errorf("stop %s: %w", s.unitName, err)
	}
	return nil
}

func (s *Systemd) Enable(ctx context.Context) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{s.unitName}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", s.unitName, err)
	}
	return nil
}

func (s *Systemd) Disable(ctx context.Context) error {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	if _, err := conn.DisableUnitFilesContext(ctx, []string{s.unitName}, false); err != nil {
		return fmt.Errorf("disable %s: %w", s.unitName, err)
	}
	return nil
}

func (s *Systemd) IsRunning(ctx context.Context) (bool, error) {
	state, _, err := s.unitState(ctx)
	if err != nil {
		return false, err
	}
	return state == "active", nil
}

func (s *Systemd) Status(ctx context.Context) (string, error) {
	state, sub, err := s.unitState(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s (%s)", s.unitName, state, sub), nil
}

func (s *Systemd) unitState(ctx context.Context) (active, sub string, err error) {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return "", "", fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, s.unitName)
	if err != nil {
		return "", "", fmt.Errorf("query %s: %w", s.unitName, err)
	}

	active, _ = props["ActiveState"].(string)
	sub, _ = props["SubState"].(string)
	return active, sub, nil
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// runJob enqueues a start/stop job in replace mode and waits for its
// completion signal. Anything but "done" is a failure.
func runJob(ctx context.Context, job jobFunc, unit string) error {
	ch := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", ch); err != nil {
		return err
	}

	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("job finished with result %q", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderUnit(name string, conf UnitConf) string {
	desc := conf.Description
	if desc == "" {
		desc = name + " service"
	}

	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s\n", desc)
	b.WriteString("After=network-online.target\n")
	b.WriteString("Wants=network-online.target\n")
	b.WriteString("\n[Service]\n")
	b.WriteString("Type=simple\n")
	fmt.Fprintf(&b, "ExecStart=%s\n", conf.ExecStart)
	if conf.WorkingDir != "" {
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", conf.WorkingDir)
	}
	if conf.User != "" {
		fmt.Fprintf(&b, "User=%s\n", conf.User)
	}

	keys := make([]string, 0, len(conf.Environment))
	for k := range conf.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "Environment=%q\n", k+"="+conf.Environment[k])
	}

	b.WriteString("Restart=on-failure\n")
	b.WriteString("RestartSec=5\n")
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}
