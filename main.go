/*
   Bobine Studio
   Copyright (C) 2025 Bobine Project

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"Bobine/backend"
	"Bobine/config"
	"Bobine/logger"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

//go:embed all:frontend
var assets embed.FS

func getAssets() fs.FS {
	sub, err := fs.Sub(assets, "frontend")
	if err != nil {
		panic(err)
	}
	return sub
}

func main() {
	cfg, cfgErr := config.Load(config.DefaultPath())
	if cfgErr != nil {
		cfg = config.Default()
	}

	// Use user's config directory for logs
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	logDir := filepath.Join(configDir, "Bobine", "logs")

	if err := logger.Init(logDir, logger.ParseLevel(cfg.LogLevel)); err != nil {
		// Fall back to stdout-only logging if file logging fails
		logger.Warn("Failed to initialize file logging: %v", err)
	}
	defer logger.Close()

	if cfgErr != nil {
		logger.WarnWithError(cfgErr, "invalid configuration, using defaults")
	}
	logger.Info("Bobine Studio starting...")

	proc := &backend.Process{
		Command: []string{cfg.Backend.Python, cfg.Backend.Script, "--interactive"},
	}
	bridge := &backend.Bridge{
		Local:   backend.Local{WorkingDir: cfg.WorkingDir},
		Proc:    proc,
		Timeout: time.Duration(cfg.Backend.Timeout),
	}

	app := NewApp(cfg, bridge)

	err = wails.Run(&options.App{
		Title: "Bobine Studio",
		Windows: &windows.Options{
			DisableWindowIcon: true,
		},
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: getAssets(),
		},
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     true,
			DisableWebViewDrop: true,
		},
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		OnStartup:        app.startup,
		OnShutdown: func(context.Context) {
			_ = proc.Close()
		},
		Bind: []interface{}{
			app,
		},

		WindowStartState: options.Maximised,
	})

	if err != nil {
		logger.Error("Application failed to start: %v", err)
	}

	logger.Info("Bobine Studio shutting down")
}
