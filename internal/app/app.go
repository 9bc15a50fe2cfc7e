package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/labstack/gommon/log"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"smartclass/internal/api"
	"smartclass/internal/bootstrap"
	"smartclass/internal/config"
	"smartclass/internal/logging"
	mcpserver "smartclass/internal/mcp"
	"smartclass/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx        context.Context
	configFile string
	log        *log.Logger

	svcs     *bootstrap.Services
	builder  *service.BuilderService
	assets   *service.AssetService
	settings *service.WindowSettingsService
	editor   *service.EditorService
	autosave *service.Autosaver
	inbox    *service.Inbox
	mcp      *mcpserver.Server
	api      *api.Server
}

// New creates a new App. configFile may be empty.
func New(configFile string) *App {
	return &App{configFile: configFile, log: logging.New("app")}
}

// wailsEmitter pushes service events to the frontend.
type wailsEmitter struct {
	ctx context.Context
}

func (e wailsEmitter) Emit(_ context.Context, event string, data any) {
	wailsRuntime.EventsEmit(e.ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	// macOS: disable "Press and Hold" so key repeat reaches the canvas shortcuts.
	exec.Command("defaults", "write", "com.wails.smartclass", "ApplePressAndHoldEnabled", "-bool", "false").Run()

	cfg, err := config.Load(a.configFile)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to load config: %v", err)
		return
	}
	logging.SetLevel(logging.LevelFor(cfg.Env))

	// Events reach the webview and any HTTP/WebSocket client.
	hub := api.NewHub()
	emitter := service.FanoutEmitter{wailsEmitter{ctx: ctx}, hub}
	svcs, err := bootstrap.New(ctx, cfg, nil, emitter)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open storage: %v", err)
		return
	}
	a.svcs = svcs
	a.builder = svcs.Builder
	a.assets = svcs.Assets
	a.settings = svcs.Settings

	size := a.settings.LoadWindowSize(ctx)
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)

	// External editor for text elements; the canvas still works without it.
	if ed, err := svcs.Editor(emitter, os.Getenv("EDITOR")); err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to start editor service: %v", err)
	} else {
		a.editor = ed
	}

	a.autosave = svcs.Autosaver()
	if err := a.autosave.Start(ctx); err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to start autosave: %v", err)
	}
	a.inbox = svcs.Inbox(emitter)
	if err := a.inbox.Start(ctx); err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to watch inbox: %v", err)
	}

	// Embedded MCP: destructive tool calls wait for ApproveMCPAction.
	a.mcp = mcpserver.New(ctx, mcpserver.Deps{
		Name:    cfg.MCPName,
		Emitter: emitter,
		Builder: svcs.Builder,
	})

	if cfg.HTTPAddress != "" {
		a.api = api.NewServer(&api.Options{
			Address:      cfg.HTTPAddress,
			Token:        svcs.APIToken(),
			Builder:      svcs.Builder,
			Assets:       svcs.Assets,
			Editor:       a.editor,
			Hub:          hub,
			MCP:          a.mcp.HTTPHandler(),
			Approvals:    a.mcp,
			CanvasWidth:  cfg.ViewportWidth,
			CanvasHeight: cfg.ViewportHeight,
		})
		go func() {
			if err := a.api.Start(); err != nil {
				wailsRuntime.LogErrorf(ctx, "HTTP API stopped: %v", err)
			}
		}()
	}
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.settings != nil {
		w, h := wailsRuntime.WindowGetSize(ctx)
		if err := a.settings.SaveWindowSize(ctx, w, h); err != nil {
			a.log.Warnf("save window size: %v", err)
		}
	}
	if a.api != nil {
		if err := a.api.Stop(ctx); err != nil {
			a.log.Warnf("stop HTTP API: %v", err)
		}
	}
	if a.autosave != nil {
		a.autosave.Stop()
	}
	if a.inbox != nil {
		a.inbox.Stop()
	}
	if a.svcs != nil {
		if err := a.svcs.Close(ctx); err != nil {
			a.log.Errorf("shutdown: %v", err)
		}
	}
}

// ============================================================
// MCP approvals
// ============================================================

// ApproveMCPAction lets a pending destructive MCP tool call run.
func (a *App) ApproveMCPAction(actionID string) {
	a.mcp.Approve(actionID)
}

// RejectMCPAction refuses a pending destructive MCP tool call.
func (a *App) RejectMCPAction(actionID string) {
	a.mcp.Reject(actionID)
}

func (a *App) PendingMCPActions() []string {
	return a.mcp.Pending()
}

func (a *App) session(projectID string) (*service.Session, error) {
	if a.builder == nil {
		return nil, fmt.Errorf("app is not started")
	}
	return a.builder.Session(projectID)
}
