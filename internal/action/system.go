package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"nex/internal/nlu"
)

// Launcher starts a desktop program without waiting for it.
type Launcher func(name string, args ...string) error

func StartProcess(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

type System struct {
	Launch Launcher
}

func (s System) Control(_ context.Context, req Request) (string, error) {
	t := strings.ToLower(req.Slots.Get(nlu.SlotTarget))

	for _, k := range []string{"exit", "quit", "stop", "goodbye"} {
		if strings.Contains(t, k) {
			return Exit, nil
		}
	}

	launch := s.Launch
	if launch == nil {
		launch = StartProcess
	}

	switch {
	case strings.Contains(t, "calculator"):
		return "Opening calculator.", launch("gnome-calculator")
	case strings.Contains(t, "terminal"), strings.Contains(t, "console"):
		return "Opening terminal.", launch("gnome-terminal")
	case strings.Contains(t, "code"), strings.Contains(t, "vscode"):
		return "Opening VS Code.", launch("code")
	}

	return "I can't do that system action yet.", nil
}
