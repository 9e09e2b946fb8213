// Command modelc hosts one or more co-simulation model instances and
// drives them through the bus rendezvous loop: `modelc run
// <stack.yaml...>` for the synchronous controller loop, or `modelc
// gateway --name=<model> <stack.yaml...>` to bring up a single
// gateway-backed instance and leave it for an external driver.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"goa.design/clue/log"

	"github.com/coruntime/modelc/internal/adapter"
	"github.com/coruntime/modelc/internal/adapter/localbus"
	"github.com/coruntime/modelc/internal/adapter/redisbus"
	"github.com/coruntime/modelc/internal/config"
	"github.com/coruntime/modelc/internal/controller"
	"github.com/coruntime/modelc/internal/endpoint"
	"github.com/coruntime/modelc/internal/gateway"
	"github.com/coruntime/modelc/internal/rundump"
	"github.com/coruntime/modelc/internal/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: modelc <run|gateway> [flags] stack.yaml...")
		os.Exit(2)
	}
	mode := os.Args[1]

	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	transportF := fs.String("transport", "local", "bus transport: local or redis")
	uriF := fs.String("uri", "", "bus transport URI (e.g. redis address)")
	uidF := fs.Uint("uid", 0, "simulation UID (0: assigned by the stack document)")
	timeoutF := fs.Float64("timeout", 0, "rendezvous timeout in seconds (0: no timeout)")
	stepSizeF := fs.Float64("step_size", 0, "step size override (0: use the stack document's)")
	endTimeF := fs.Float64("end_time", 0, "end time override (0: use the stack document's)")
	logLevelF := fs.String("log_level", "info", "debug, info, warn, or error")
	nameF := fs.String("name", "", "gateway mode: name of the gateway-backed model instance")
	mongoURIF := fs.String("mongo_uri", "", "optional Mongo URI for debug-dump persistence")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "modelc: at least one stack/model YAML file is required")
		os.Exit(2)
	}

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *logLevelF == "debug" {
		ctx = log.Context(ctx, log.WithDebug())
	}
	// A fresh run ID is attached to run mode's terminal log lines
	// (cancelled / run failed), so multiple modelc processes sharing a bus
	// (e.g. several hosts in one redis-backed simulation) can be told apart
	// in a centralized log sink.
	runID := uuid.NewString()

	sim, err := config.LoadStack(files...)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *uidF != 0 {
		sim.UID = uint32(*uidF)
	}
	if *stepSizeF != 0 {
		sim.StepSize = *stepSizeF
	}
	if *endTimeF != 0 {
		sim.EndTime = *endTimeF
	}
	if *timeoutF != 0 {
		sim.Timeout = *timeoutF
	}
	sim.Transport = *transportF
	if *uriF != "" {
		sim.URI = *uriF
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	ad, err := buildAdapter(ctx, sim, logger)
	if err != nil {
		log.Fatal(ctx, err)
	}

	ctrl, err := controller.Init(ad, logger, metrics)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *mongoURIF != "" {
		log.Print(ctx, log.KV{K: "msg", V: "mongo debug-dump sink not wired: pass a pre-built *mongo.Client via the library API"})
	} else {
		ctrl.SetDumpSink(rundump.NewLogSink(logger))
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		ctrl.Stop()
	}()

	switch mode {
	case "run":
		runMode(ctx, ctrl, sim, runID)
	case "gateway":
		gatewayMode(ctx, ctrl, sim, *nameF)
	default:
		fmt.Fprintf(os.Stderr, "modelc: unknown mode %q (want run or gateway)\n", mode)
		os.Exit(2)
	}
}

func runMode(ctx context.Context, ctrl *controller.Controller, sim *config.SimulationSpec, runID string) {
	if err := ctrl.LoadModels(sim); err != nil {
		log.Fatal(ctx, err)
	}
	err := ctrl.Run(ctx)
	ctrl.Exit(ctx)
	switch {
	case err == nil:
		os.Exit(0)
	case err == controller.ErrCancelled:
		log.Print(ctx, log.KV{K: "msg", V: "cancelled"}, log.KV{K: "run_id", V: runID})
		os.Exit(125)
	default:
		log.Error(ctx, err, log.KV{K: "msg", V: "run failed"}, log.KV{K: "run_id", V: runID})
		os.Exit(1)
	}
}

// gatewayMode sets up a single gateway-backed instance and reads a simple
// line protocol from stdin to drive it: "sync <model_time>" advances the
// simulation and prints "ok", "behind", or "error: <message>", or prints
// "cancelled" and ends the run once Stop was requested; any other input or
// EOF ends the run. This lets a local operator or a test harness
// exercise gateway mode without embedding modelc as a library.
func gatewayMode(ctx context.Context, ctrl *controller.Controller, sim *config.SimulationSpec, name string) {
	if name != "" {
		filtered := sim.Instances[:0]
		for _, inst := range sim.Instances {
			if inst.Name == name {
				filtered = append(filtered, inst)
			}
		}
		sim.Instances = filtered
	}

	gw, err := gateway.Setup(ctx, ctrl, sim)
	if err != nil {
		log.Fatal(ctx, err)
	}
	defer gw.Exit(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[0] != "sync" {
			break
		}
		t, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		switch err := gw.Sync(ctx, t); {
		case err == nil:
			fmt.Println("ok")
		case err == controller.ErrGatewayBehind:
			fmt.Println("behind")
		case err == controller.ErrCancelled:
			fmt.Println("cancelled")
			return
		default:
			fmt.Println("error:", err)
		}
	}
}

func buildAdapter(ctx context.Context, sim *config.SimulationSpec, logger telemetry.Logger) (adapter.Adapter, error) {
	var ad adapter.Adapter
	switch sim.Transport {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: sim.URI})
		ad = redisbus.New(redisbus.NewBus(), client, fmt.Sprintf("modelc:%d", sim.UID))
	case "local", "":
		ad = localbus.New(localbus.NewBus())
	default:
		return nil, fmt.Errorf("modelc: unknown transport %q", sim.Transport)
	}

	timeout := time.Duration(sim.Timeout * float64(time.Second))
	ep, err := endpoint.Create(ctx, logger, trivialFactory, sim.Transport, sim.URI, sim.UID, false, timeout, nil)
	if err != nil {
		return nil, err
	}
	if err := ad.Create(ep); err != nil {
		return nil, err
	}
	return ad, nil
}

// trivialFactory satisfies endpoint.Factory for both bundled transports:
// neither localbus nor redisbus needs an explicit pre-Connect handshake, so
// this just assigns the UID the caller requested.
func trivialFactory(_ context.Context, _, _ string, uid uint32, _ bool, _ time.Duration) (endpoint.Endpoint, error) {
	return trivialEndpoint{uid: uid}, nil
}

type trivialEndpoint struct{ uid uint32 }

func (trivialEndpoint) Start(context.Context) error { return nil }
func (e trivialEndpoint) UID() uint32               { return e.uid }
