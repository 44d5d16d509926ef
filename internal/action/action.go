// Package action runs button actions on the host: launching programs, opening
// URLs, sending hotkeys, media and volume control, and sounds.
package action

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
)

var (
	ErrUnknownKind = errors.New("unknown action type")
	ErrUnsupported = errors.New("action not supported on this platform")
	ErrEmptyParam  = errors.New("action parameter is empty")
)

// SoundPlayer plays a named sound.
type SoundPlayer interface {
	Play(name string) error
}

// legacy note actions map straight to sound names
var noteSounds = map[string]string{
	"play_gong":  "gong",
	"play_shang": "shang",
	"play_jiao":  "jiao",
	"play_zhi":   "zhi",
	"play_yu":    "yu",
}

// Kinds lists every action type Execute understands.
var Kinds = []string{
	"launch_app", "open_url", "hotkey",
	"media_volume_up", "media_volume_down", "media_mute",
	"media_play_pause", "media_next_track", "media_prev_track", "media_stop",
	"play_sound", "play_gong", "play_shang", "play_jiao", "play_zhi", "play_yu",
}

// Runner executes actions with the host's command line tools.
type Runner struct {
	GOOS  string
	Sound SoundPlayer

	// start launches a detached process; run waits for it.
	start func(argv []string) error
	run   func(argv []string) error
}

func NewRunner(sound SoundPlayer) *Runner {
	return &Runner{
		GOOS:  runtime.GOOS,
		Sound: sound,
		start: func(argv []string) error {
			cmd := exec.Command(argv[0], argv[1:]...)
			if err := cmd.Start(); err != nil {
				return err
			}
			go cmd.Wait()
			return nil
		},
		run: func(argv []string) error {
			out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// Execute runs one action and reports whether it succeeded.
func (r *Runner) Execute(kind, param string) error {
	log.Printf("[action] executing %s %q", kind, param)

	if kind == "play_sound" || noteSounds[kind] != "" {
		name := noteSounds[kind]
		if name == "" {
			name = param
		}
		if r.Sound == nil {
			return fmt.Errorf("%w: no audio output", ErrUnsupported)
		}
		return r.Sound.Play(name)
	}

	detach, cmds, err := Commands(r.GOOS, kind, param)
	if err != nil {
		return err
	}
	for _, argv := range cmds {
		if detach {
			err = r.start(argv)
		} else {
			err = r.run(argv)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}
	return nil
}

// Commands returns the command lines that perform kind on goos. detach is true
// when the command starts a long-lived program that must not be waited for.
func Commands(goos, kind, param string) (detach bool, cmds [][]string, err error) {
	switch kind {
	case "launch_app":
		if strings.TrimSpace(param) == "" {
			return false, nil, fmt.Errorf("%s: %w", kind, ErrEmptyParam)
		}
		switch goos {
		case "windows":
			return true, [][]string{{"cmd", "/c", "start", "", param}}, nil
		case "darwin":
			if strings.HasSuffix(param, ".app") {
				return true, [][]string{{"open", "-a", param}}, nil
			}
		}
		return true, [][]string{strings.Fields(param)}, nil

	case "open_url":
		if param == "" {
			return false, nil, fmt.Errorf("%s: %w", kind, ErrEmptyParam)
		}
		switch goos {
		case "windows":
			return true, [][]string{{"rundll32", "url.dll,FileProtocolHandler", param}}, nil
		case "darwin":
			return true, [][]string{{"open", param}}, nil
		}
		return true, [][]string{{"xdg-open", param}}, nil

	case "hotkey":
		if param == "" {
			return false, nil, fmt.Errorf("%s: %w", kind, ErrEmptyParam)
		}
		if goos != "linux" {
			return false, nil, fmt.Errorf("%s on %s: %w", kind, goos, ErrUnsupported)
		}
		return false, [][]string{{"xdotool", "key", "--clearmodifiers", XdotoolKeys(param)}}, nil
	}

	if strings.HasPrefix(kind, "media_") {
		cmds, err := mediaCommands(goos, kind)
		return false, cmds, err
	}
	return false, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func mediaCommands(goos, kind string) ([][]string, error) {
	switch goos {
	case "linux":
		volume := func(delta string) []string {
			return []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", delta}
		}
		switch kind {
		case "media_volume_up":
			// two steps per press
			return [][]string{volume("+5%"), volume("+5%")}, nil
		case "media_volume_down":
			return [][]string{volume("-5%")}, nil
		case "media_mute":
			return [][]string{{"pactl", "set-sink-mute", "@DEFAULT_SINK@", "toggle"}}, nil
		case "media_play_pause":
			return [][]string{{"playerctl", "play-pause"}}, nil
		case "media_next_track":
			return [][]string{{"playerctl", "next"}}, nil
		case "media_prev_track":
			return [][]string{{"playerctl", "previous"}}, nil
		case "media_stop":
			return [][]string{{"playerctl", "stop"}}, nil
		}
	case "darwin":
		script := func(s string) []string { return []string{"osascript", "-e", s} }
		switch kind {
		case "media_volume_up":
			return [][]string{script("set volume output volume ((output volume of (get volume settings)) + 12)")}, nil
		case "media_volume_down":
			return [][]string{script("set volume output volume ((output volume of (get volume settings)) - 6)")}, nil
		case "media_mute":
			return [][]string{script("set volume output muted (not (output muted of (get volume settings)))")}, nil
		}
	}
	if !knownKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil, fmt.Errorf("%s on %s: %w", kind, goos, ErrUnsupported)
}

func knownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var keyNames = map[string]string{
	"CTRL":   "ctrl",
	"ALT":    "alt",
	"SHIFT":  "shift",
	"WIN":    "super",
	"CMD":    "super",
	"ESC":    "Escape",
	"ENTER":  "Return",
	"TAB":    "Tab",
	"SPACE":  "space",
	"DEL":    "Delete",
	"DELETE": "Delete",
	"[":      "bracketleft",
	"]":      "bracketright",
}

// XdotoolKeys turns "CTRL+SHIFT+ESC" into "ctrl+shift+Escape".
func XdotoolKeys(combo string) string {
	parts := strings.Split(combo, "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if name, ok := keyNames[strings.ToUpper(p)]; ok {
			parts[i] = name
			continue
		}
		if len(p) == 1 {
			parts[i] = strings.ToLower(p)
			continue
		}
		parts[i] = p
	}
	return strings.Join(parts, "+")
}
