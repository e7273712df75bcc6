//go:generate glslc ../shaders/cube.vert -o ../shaders/cube.vert.spv
//go:generate glslc ../shaders/cube.frag -o ../shaders/cube.frag.spv
//go:generate glslc ../shaders/ui.vert -o ../shaders/ui.vert.spv
//go:generate glslc ../shaders/ui.frag -o ../shaders/ui.frag.spv

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"

	"github.com/vkngwrapper/vulkan-mvp/config"
	"github.com/vkngwrapper/vulkan-mvp/frame"
	"github.com/vkngwrapper/vulkan-mvp/gpu"
	"github.com/vkngwrapper/vulkan-mvp/mesh"
	"github.com/vkngwrapper/vulkan-mvp/scene"
	"github.com/vkngwrapper/vulkan-mvp/ui"
	"github.com/vkngwrapper/vulkan-mvp/window"
)

const titleInterval = 250 * time.Millisecond

func main() {
	runtime.LockOSThread()

	err := run(os.Args[1:])
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(args []string) error {
	cfg, err := config.Parse("vulkan-mvp", args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := window.New(window.Options{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	device, err := gpu.NewContext(win.SDL(), gpu.Options{
		AppName:    cfg.Window.Title,
		Validation: cfg.Validation,
		ShaderDir:  cfg.ShaderDir,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer device.Close()

	vertices, err := mesh.Cube()
	if err != nil {
		return err
	}

	vertexBuffer, err := device.CreateVertexBuffer(vertices)
	if err != nil {
		return err
	}
	defer vertexBuffer.Destroy()

	cubePipeline, err := device.CreatePipeline(gpu.PipelineConfig{
		Pass:           frame.PassOffscreen,
		VertexShader:   "cube.vert.spv",
		FragmentShader: "cube.frag.spv",
		Vertex: &gpu.VertexLayout{
			Stride: mesh.VertexStride,
			Attributes: []gpu.VertexAttribute{
				{Location: 0, Offset: mesh.PositionOffset},
				{Location: 1, Offset: mesh.ColorOffset},
			},
		},
		PushConstantSize: int(unsafe.Sizeof(mgl32.Mat4{})),
		DepthTest:        true,
	})
	if err != nil {
		return err
	}
	defer cubePipeline.Destroy()

	uiPipeline, err := device.CreatePipeline(gpu.PipelineConfig{
		Pass:             frame.PassPresent,
		VertexShader:     "ui.vert.spv",
		FragmentShader:   "ui.frag.spv",
		PushConstantSize: int(unsafe.Sizeof(ui.QuadConstants{})),
		Textured:         true,
		Blend:            true,
	})
	if err != nil {
		return err
	}
	defer uiPipeline.Destroy()

	white, err := device.WhiteTexture()
	if err != nil {
		return err
	}
	defer white.Destroy()

	overlay, err := ui.New(device, uiPipeline, white.View(), ui.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer overlay.Close()

	renderer := scene.NewRenderer(cubePipeline, vertexBuffer, len(vertices))

	lastTitle := hrtime.Now()
	driver, err := frame.NewDriver(frame.Options{
		FramesInFlight: cfg.FramesInFlight,
		OffscreenSize:  frame.Extent{Width: cfg.Offscreen.Width, Height: cfg.Offscreen.Height},
		Logger:         logger,
		OnFrame: func(outcome frame.Outcome, stats frame.Stats) {
			overlay.SetStats(stats)
			if hrtime.Since(lastTitle) >= titleInterval {
				win.SetTitle(cfg.Window.Title + " | " + stats.String())
				lastTitle = hrtime.Now()
			}
		},
	}, device, win, renderer, overlay, overlay)
	if err != nil {
		return err
	}
	// The driver's targets hold texture handles, so it closes before the
	// overlay that issued them.
	defer func() {
		closeErr := driver.Close()
		if closeErr != nil {
			logger.Error("close frame driver", slog.Any("error", closeErr))
		}
	}()

	return driver.Run(ctx)
}
