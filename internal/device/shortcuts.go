package device

import (
	"context"
	"fmt"
	"sort"
)

// Shortcut is a named key chord understood by the mirroring app.
type Shortcut struct {
	Name        string
	Key         string
	Modifiers   []Modifier
	Description string
}

var shortcuts = map[string]Shortcut{
	"home":         {Name: "home", Key: "1", Modifiers: []Modifier{ModSuper}, Description: "Go to the home screen"},
	"app_switcher": {Name: "app_switcher", Key: "2", Modifiers: []Modifier{ModSuper}, Description: "Open the app switcher"},
	"spotlight":    {Name: "spotlight", Key: "3", Modifiers: []Modifier{ModSuper}, Description: "Open search"},
	"return":       {Name: "return", Key: "Return", Description: "Press return"},
}

// LookupShortcut returns the shortcut registered under name.
func LookupShortcut(name string) (Shortcut, bool) {
	s, ok := shortcuts[name]
	return s, ok
}

// ShortcutNames returns all shortcut names sorted.
func ShortcutNames() []string {
	names := make([]string, 0, len(shortcuts))
	for name := range shortcuts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PressShortcut presses and releases the named shortcut.
func PressShortcut(ctx context.Context, in InputSynthesizer, name string) error {
	s, ok := LookupShortcut(name)
	if !ok {
		return fmt.Errorf("unknown shortcut %q", name)
	}
	if err := in.KeyPress(ctx, s.Key, s.Modifiers); err != nil {
		return fmt.Errorf("press %s: %w", name, err)
	}
	if err := sleep(ctx, EventGap); err != nil {
		return err
	}
	if err := in.KeyRelease(ctx, s.Key, s.Modifiers); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
