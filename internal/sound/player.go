// Package sound preloads short audio clips and plays them by name.
package sound

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

const SampleRate = beep.SampleRate(44100)

var ErrUnknownSound = errors.New("sound not loaded")

// Player holds decoded clips keyed by file name without extension.
type Player struct {
	mu      sync.Mutex
	buffers map[string]*beep.Buffer
	play    func(beep.Streamer)
}

// NewPlayer initializes the speaker and loads every .wav and .ogg file in dir.
func NewPlayer(dir string) (*Player, error) {
	p := newPlayer(speaker.Play)
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	if err := p.Load(dir); err != nil {
		return p, err
	}
	return p, nil
}

func newPlayer(play func(beep.Streamer)) *Player {
	return &Player{buffers: make(map[string]*beep.Buffer), play: play}
}

// Load decodes the clips in dir. Files that fail to decode are logged and
// skipped.
func (p *Player) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read sounds dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".wav" && ext != ".ogg" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		buf, err := decode(filepath.Join(dir, e.Name()), ext)
		if err != nil {
			log.Printf("[sound] failed to load %s: %v", e.Name(), err)
			continue
		}
		p.mu.Lock()
		p.buffers[name] = buf
		p.mu.Unlock()
		log.Printf("[sound] loaded %s", name)
	}
	return nil
}

func decode(path, ext string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".ogg":
		streamer, format, err = vorbis.Decode(io.NopCloser(f))
	default:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: SampleRate, NumChannels: format.NumChannels, Precision: format.Precision})
	if format.SampleRate == SampleRate {
		buf.Append(streamer)
	} else {
		buf.Append(beep.Resample(4, format.SampleRate, SampleRate, streamer))
	}
	return buf, nil
}

// Names lists loaded clips.
func (p *Player) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.buffers))
	for n := range p.buffers {
		names = append(names, n)
	}
	return names
}

// Play starts the named clip and returns immediately.
func (p *Player) Play(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.buffers[strings.ToLower(name)]
	if !ok {
		buf, ok = p.buffers[name]
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	p.play(buf.Streamer(0, buf.Len()))
	return nil
}
