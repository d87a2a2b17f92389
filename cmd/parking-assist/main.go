package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/parking-assist/internal/button"
	"github.com/librescoot/parking-assist/internal/display"
	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port/linux"
	"github.com/librescoot/parking-assist/internal/ultrasound"
	"github.com/librescoot/parking-assist/internal/urbanite"
)

const (
	buttonID     = 0
	ultrasoundID = 0
	displayID    = 0
)

func main() {
	var (
		serviceLogLevel int
		onOffMs         uint
		pauseMs         uint
		emergencyMs     uint
		tickInterval    time.Duration

		buttonChip, buttonLine int

		triggerChip, triggerLine int
		echoChip, echoLine       int

		redDevice, greenDevice, blueDevice string
	)

	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	flag.UintVar(&onOffMs, "on-off-ms", 1000, "Button press duration in ms to power the system on or off")
	flag.UintVar(&pauseMs, "pause-ms", 250, "Button press duration in ms to toggle display pause")
	flag.UintVar(&emergencyMs, "emergency-ms", 3000, "Button press duration in ms to enter or leave emergency mode")
	flag.DurationVar(&tickInterval, "tick", 5*time.Millisecond, "Main loop evaluation period")

	flag.IntVar(&buttonChip, "button-chip", 0, "GPIO chip number for the arm button")
	flag.IntVar(&buttonLine, "button-line", 0, "GPIO line offset for the arm button")

	flag.IntVar(&triggerChip, "trigger-chip", 1, "GPIO chip number for the ultrasound trigger line")
	flag.IntVar(&triggerLine, "trigger-line", 0, "GPIO line offset for the ultrasound trigger line")
	flag.IntVar(&echoChip, "echo-chip", 1, "GPIO chip number for the ultrasound echo line")
	flag.IntVar(&echoLine, "echo-line", 1, "GPIO line offset for the ultrasound echo line")

	flag.StringVar(&redDevice, "display-red-device", "/dev/pwm_led0", "PWM device for the display's red channel")
	flag.StringVar(&greenDevice, "display-green-device", "/dev/pwm_led1", "PWM device for the display's green channel")
	flag.StringVar(&blueDevice, "display-blue-device", "/dev/pwm_led2", "PWM device for the display's blue channel")

	flag.Parse()

	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting parking-assist controller...")

	portLog := l.WithTag("port")
	buttonLog := l.WithTag("button")
	ultrasoundLog := l.WithTag("ultrasound")
	displayLog := l.WithTag("display")
	urbaniteLog := l.WithTag("urbanite")

	clock := linux.NewClock()

	buttonPort := linux.NewButton(clock, map[uint32]linux.LineConfig{
		buttonID: {Chip: buttonChip, Line: buttonLine},
	}, portLog)
	ultrasoundPort := linux.NewUltrasound(clock, map[uint32]linux.TransceiverConfig{
		ultrasoundID: {
			TriggerChip: triggerChip, TriggerLine: triggerLine,
			EchoChip: echoChip, EchoLine: echoLine,
		},
	}, portLog)
	displayPort := linux.NewDisplay(map[uint32]linux.ChannelConfig{
		displayID: {RedDevice: redDevice, GreenDevice: greenDevice, BlueDevice: blueDevice},
	}, portLog)

	buttonFSM := button.New(buttonID, buttonPort, clock, buttonLog)
	ultrasoundFSM := ultrasound.New(ultrasoundID, ultrasoundPort, ultrasoundLog)
	displayFSM := display.New(displayID, displayPort, displayLog)
	master := urbanite.New(clock, buttonFSM, ultrasoundFSM, displayFSM,
		uint32(onOffMs), uint32(pauseMs), uint32(emergencyMs), urbaniteLog)

	l.Infof("System initialized, on_off=%dms pause=%dms emergency=%dms", onOffMs, pauseMs, emergencyMs)

	stopChan := make(chan struct{})
	go runLoop(buttonFSM, ultrasoundFSM, displayFSM, master, tickInterval, stopChan)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	close(stopChan)

	buttonPort.Close()
	ultrasoundPort.Close()
	displayPort.Close()

	l.Infof("Shutdown complete")
}

// runLoop is the single cooperative evaluation cycle: each of the four
// FSMs gets one Fire per tick, leaf FSMs first so the master FSM sees
// their freshly-updated state in the same cycle it runs in.
func runLoop(b *button.FSM, u *ultrasound.FSM, d *display.FSM, m *urbanite.FSM, tick time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.Fire()
			u.Fire()
			d.Fire()
			m.Fire()
		}
	}
}
