package main

import (
	"context"
	"embed"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	builderApp "smartclass/internal/app"
	"smartclass/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	configFile := flag.String("config", "", "config file (yaml, json or toml)")
	serveMCP := flag.Bool("mcp", false, "run as a stdio MCP server without the GUI")
	flag.Parse()

	if *serveMCP {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		cfg, err := config.Load(*configFile)
		if err != nil {
			println("Error:", err.Error())
			os.Exit(1)
		}
		if err := builderApp.ServeMCP(ctx, cfg); err != nil {
			println("Error:", err.Error())
			os.Exit(1)
		}
		return
	}

	app := builderApp.New(*configFile)

	// macOS needs an Edit menu for Cmd+C/V/X/A to reach the WebView
	appMenu := menu.NewMenu()
	appMenu.Append(menu.EditMenu())

	err := wails.Run(&options.App{
		Title:     "SmartClass Builder",
		Width:     1440,
		Height:    900,
		MinWidth:  1024,
		MinHeight: 640,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 248, G: 249, B: 251, A: 1},
		Menu:             appMenu,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				FullSizeContent:            true,
			},
			About: &mac.AboutInfo{
				Title:   "SmartClass Builder",
				Message: "Page builder for interactive lessons",
			},
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
