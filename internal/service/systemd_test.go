package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
)

type fakeDBus struct {
	calls       []string
	startResult string
	stopResult  string
	startErr    error
	props       map[string]interface{}
}

func (f *fakeDBus) Close() {}

func (f *fakeDBus) StartUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	f.calls = append(f.calls, "start "+name+" "+mode)
	if f.startErr != nil {
		return 0, f.startErr
	}
	ch <- f.startResult
	return 1, nil
}

func (f *fakeDBus) StopUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	f.calls = append(f.calls, "stop "+name+" "+mode)
	ch <- f.stopResult
	return 1, nil
}

func (f *fakeDBus) EnableUnitFilesContext(_ context.Context, files []string, _, _ bool) (bool, []dbus.EnableUnitFileChange, error) {
	f.calls = append(f.calls, "enable "+strings.Join(files, ","))
	return true, nil, nil
}

func (f *fakeDBus) DisableUnitFilesContext(_ context.Context, files []string, _ bool) ([]dbus.DisableUnitFileChange, error) {
	f.calls = append(f.calls, "disable "+strings.Join(files, ","))
	return nil, nil
}

func (f *fakeDBus) ReloadContext(_ context.Context) error {
	f.calls = append(f.calls, "reload")
	return nil
}

func (f *fakeDBus) GetUnitPropertiesContext(_ context.Context, unit string) (map[string]interface{}, error) {
	f.calls = append(f.calls, "props "+unit)
	return f.props, nil
}

func newTestSystemd(fake *fakeDBus, unitDir string) *Systemd {
	s := New("solab-bot")
	s.unitDir = unitDir
	s.newDBus = func(context.Context) (DBusAPI, error) { return fake, nil }
	return s
}

func TestStartWaitsForDone(t *testing.T) {
	fake := &fakeDBus{startResult: "done"}
	s := newTestSystemd(fake, t.TempDir())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "start solab-bot.service replace" {
		t.Fatalf("unexpected calls: %v", fake.calls)
	}
}

func TestStartFailedJob(t *testing.T) {
	fake := &fakeDBus{startResult: "failed"}
	s := newTestSystemd(fake, t.TempDir())

	err := s.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failed job error, got %v", err)
	}
}

func TestStartEnqueueError(t *testing.T) {
	fake := &fakeDBus{startErr: errors.New("no such unit")}
	s := newTestSystemd(fake, t.TempDir())

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected enqueue error")
	}
}

func TestIsRunning(t *testing.T) {
	fake := &fakeDBus{props: map[string]interface{}{"ActiveState": "active", "SubState": "running"}}
	s := newTestSystemd(fake, t.TempDir())

	running, err := s.IsRunning(context.Background())
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if !running {
		t.Fatalf("expected running")
	}

	fake.props["ActiveState"] = "inactive"
	running, err = s.IsRunning(context.Background())
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if running {
		t.Fatalf("expected not running")
	}
}

func TestStatusText(t *testing.T) {
	fake := &fakeDBus{props: map[string]interface{}{"ActiveState": "active", "SubState": "running"}}
	s := newTestSystemd(fake, t.TempDir())

	status, err := s.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != "solab-bot.service: active (running)" {
		t.Fatalf("unexpected status %q", status)
	}
}

func TestInstallWritesUnitAndEnables(t *testing.T) {
	fake := &fakeDBus{}
	dir := t.TempDir()
	s := newTestSystemd(fake, dir)

	conf := UnitConf{
		ExecStart:   "/usr/bin/python3 /opt/solab/main.py",
		WorkingDir:  "/opt/solab",
		User:        "solab",
		Environment: map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
	}
	if err := s.Install(context.Background(), conf); err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, err := os.ReadFile(s.UnitPath())
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	unit := string(data)
	for _, want := range []string{
		"ExecStart=/usr/bin/python3 /opt/solab/main.py",
		"WorkingDirectory=/opt/solab",
		"User=solab",
		`Environment="TELEGRAM_BOT_TOKEN=tok"`,
		"WantedBy=multi-user.target",
	} {
		if !strings.Contains(unit, want) {
			t.Fatalf("unit file missing %q:\n%s", want, unit)
		}
	}

	if len(fake.calls) != 2 || fake.calls[0] != "reload" || fake.calls[1] != "enable solab-bot.service" {
		t.Fatalf("unexpected calls: %v", fake.calls)
	}
}

func TestInstallRequiresExecStart(t *testing.T) {
	s := newTestSystemd(&fakeDBus{}, t.TempDir())
	if err := s.Install(context.Background(), UnitConf{}); err == nil {
		t.Fatalf("expected error for missing exec_start")
	}
}

func TestUninstallRemovesUnitFile(t *testing.T) {
	fake := &fakeDBus{stopResult: "done"}
	dir := t.TempDir()
	s := newTestSystemd(fake, dir)

	if err := s.Install(context.Background(), UnitConf{ExecStart: "/bin/true"}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := s.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(s.UnitPath()); !os.IsNotExist(err) {
		t.Fatalf("unit file should be removed")
	}
}
