package linux

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/atomic"

	"github.com/librescoot/parking-assist/internal/logger"
)

// LineConfig names a GPIO character device line: gpiochip<Chip>, line
// offset Line.
type LineConfig struct {
	Chip int
	Line int
}

// Button drives one or more momentary buttons over go-gpiocdev. Pressed
// is the single-writer (edge handler) / single-reader (button FSM)
// mirror flag the original's ISR would set; Value reads the raw line
// level directly, bypassing the mirror.
type Button struct {
	clock   *Clock
	configs map[uint32]LineConfig
	log     *logger.Logger

	mu    sync.Mutex
	chips map[int]*gpiocdev.Chip
	lines map[uint32]*gpiocdev.Line

	pressed map[uint32]*atomic.Bool
}

// NewButton creates a button adapter. configs maps a button ID to the
// GPIO line it reads.
func NewButton(clock *Clock, configs map[uint32]LineConfig, log *logger.Logger) *Button {
	return &Button{
		clock:   clock,
		configs: configs,
		log:     log,
		chips:   make(map[int]*gpiocdev.Chip),
		lines:   make(map[uint32]*gpiocdev.Line),
		pressed: make(map[uint32]*atomic.Bool),
	}
}

func (b *Button) Init(id uint32) {
	cfg, ok := b.configs[id]
	if !ok {
		panic(fmt.Sprintf("linux: no GPIO line configured for button %d", id))
	}

	b.mu.Lock()
	chip, ok := b.chips[cfg.Chip]
	if !ok {
		var err error
		chip, err = gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", cfg.Chip))
		if err != nil {
			b.mu.Unlock()
			panic(fmt.Sprintf("linux: open gpiochip%d: %v", cfg.Chip, err))
		}
		b.chips[cfg.Chip] = chip
	}
	flag := atomic.NewBool(false)
	b.pressed[id] = flag
	b.mu.Unlock()

	line, err := chip.RequestLine(cfg.Line,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.edgeHandler(id, flag)),
		gpiocdev.WithConsumer("parking-assist"),
	)
	if err != nil {
		panic(fmt.Sprintf("linux: request button line %d/%d: %v", cfg.Chip, cfg.Line, err))
	}

	b.mu.Lock()
	b.lines[id] = line
	b.mu.Unlock()
}

func (b *Button) edgeHandler(id uint32, flag *atomic.Bool) gpiocdev.EventHandler {
	return func(evt gpiocdev.LineEvent) {
		flag.Store(evt.Type == gpiocdev.LineEventFallingEdge)
		b.clock.Wake()
	}
}

func (b *Button) Pressed(id uint32) bool {
	return b.pressed[id].Load()
}

func (b *Button) SetPressed(id uint32, pressed bool) {
	b.pressed[id].Store(pressed)
}

func (b *Button) Value(id uint32) (bool, error) {
	b.mu.Lock()
	line := b.lines[id]
	b.mu.Unlock()

	v, err := line.Value()
	if err != nil {
		wrapped := fmt.Errorf("linux: read button %d line: %w", id, err)
		b.log.Errorf("%v", wrapped)
		return false, wrapped
	}
	return v == 0, nil
}

// Close releases every GPIO line and chip the adapter opened.
func (b *Button) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, line := range b.lines {
		line.Close()
	}
	for _, chip := range b.chips {
		chip.Close()
	}
}
