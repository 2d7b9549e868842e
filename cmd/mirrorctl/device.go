package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfateev/temporal-mirror-agent/internal/activities"
	"github.com/mfateev/temporal-mirror-agent/internal/app"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

var (
	captureOut      string
	swipeIntensity  int
	swipeMultiplier int
)

var pressCmd = &cobra.Command{
	Use:   "press <shortcut>",
	Short: "Press a mirroring shortcut (" + strings.Join(device.ShortcutNames(), ", ") + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := buildComponents()
		if err != nil {
			return err
		}
		defer components.Close()

		ctx := cmd.Context()
		if _, _, err := device.FocusWindow(ctx, components.Capture, components.Config.Session.WindowTitle); err != nil {
			return err
		}
		if err := device.PressShortcut(ctx, components.Input, args[0]); err != nil {
			return err
		}
		fmt.Println(render(successStyle, "Pressed "+args[0]))
		return nil
	},
}

var swipeCmd = &cobra.Command{
	Use:       "swipe <up|down|left|right>",
	Short:     "Drag across the centre of the mirrored window",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down", "left", "right"},
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := buildComponents()
		if err != nil {
			return err
		}
		defer components.Close()

		ctx := cmd.Context()
		_, frame, err := device.FocusWindow(ctx, components.Capture, components.Config.Session.WindowTitle)
		if err != nil {
			return err
		}
		opts := device.SwipeOptions{
			Direction:  models.Direction(args[0]),
			Intensity:  swipeIntensity,
			Multiplier: swipeMultiplier,
		}
		if err := device.Swipe(ctx, components.Input, frame.Rect, opts); err != nil {
			return err
		}
		fmt.Println(render(successStyle, "Swiped "+args[0]))
		return nil
	},
}

var doubleClickCmd = &cobra.Command{
	Use:   "double-click <x> <y>",
	Short: "Double-click at a point relative to the mirrored window's top-left corner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid x %q: %w", args[0], err)
		}
		y, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid y %q: %w", args[1], err)
		}

		components, err := buildComponents()
		if err != nil {
			return err
		}
		defer components.Close()

		ctx := cmd.Context()
		_, frame, err := device.FocusWindow(ctx, components.Capture, components.Config.Session.WindowTitle)
		if err != nil {
			return err
		}
		p := models.Point{X: frame.Rect.X + x, Y: frame.Rect.Y + y}
		if !frame.Rect.Contains(p) {
			return fmt.Errorf("point (%d, %d) is outside the %dx%d window", x, y, frame.Rect.Width, frame.Rect.Height)
		}
		if err := device.DoubleClick(ctx, components.Input, p); err != nil {
			return err
		}
		fmt.Println(render(successStyle, "Double-clicked at "+p.String()))
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the mirrored window with the cursor marker, as sent to the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := buildComponents()
		if err != nil {
			return err
		}
		defer components.Close()

		ctx := cmd.Context()
		out, err := components.DeviceActivities().CaptureScreenshot(ctx, activities.CaptureInput{
			SessionID:   "manual",
			WindowTitle: components.Config.Session.WindowTitle,
			Codec:       components.Config.Session.Codec,
		})
		if err != nil {
			return err
		}

		path := out.ScreenshotRef
		if captureOut != "" {
			data, err := components.Screenshots.Get(ctx, out.ScreenshotRef)
			if err != nil {
				return err
			}
			if err := os.WriteFile(captureOut, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", captureOut, err)
			}
			path = captureOut
		}

		fmt.Printf("%s %s\n", render(labelStyle, "Screenshot:"), render(valueStyle, path))
		fmt.Printf("%s %s\n", render(labelStyle, "Window:    "), render(valueStyle, fmt.Sprintf("%dx%d at (%d, %d)",
			out.WindowRect.Width, out.WindowRect.Height, out.WindowRect.X, out.WindowRect.Y)))
		fmt.Printf("%s %s\n", render(labelStyle, "Cursor:    "), render(valueStyle, out.Cursor.String()))
		fmt.Printf("%s %s\n", render(labelStyle, "Size:      "), render(valueStyle, fmt.Sprintf("%d bytes at quality %d", out.Bytes, out.Quality)))
		if !out.WithinCeiling {
			fmt.Println(render(errorStyle, "Warning: image exceeds the byte ceiling at the quality floor"))
		}
		return nil
	},
}

func buildComponents() (*app.Components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(cfg, createLogger())
}

func init() {
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Also write the JPEG to this path")
	swipeCmd.Flags().IntVar(&swipeIntensity, "intensity", device.DefaultSwipeIntensity, "Pixels from the centre to each end of the drag")
	swipeCmd.Flags().IntVar(&swipeMultiplier, "multiplier", device.DefaultSwipeMultiplier, "Drag steps, 10 per unit")
}
