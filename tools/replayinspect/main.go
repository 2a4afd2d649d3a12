// Command replayinspect prints a summary of a dumped session bundle: the
// manifest, the control-event timeline, and per-frame tick metadata decoded
// from the compressed frame stream.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"morphfield/sculptor/internal/replay"
	"morphfield/sculptor/internal/stream"
)

func main() {
	frames := flag.Bool("frames", false, "list every frame instead of the summary line")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replayinspect [-frames] <bundle-dir>")
		os.Exit(2)
	}
	if err := inspect(flag.Arg(0), *frames); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspect(bundleDir string, listFrames bool) error {
	//1.- The manifest anchors the bundle; refuse directories without one.
	raw, err := os.ReadFile(filepath.Join(bundleDir, "manifest.json"))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var manifest replay.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	fmt.Printf("bundle %s\n", bundleDir)
	fmt.Printf("  created %s, %d frames, %d events\n", manifest.CreatedAt, manifest.FrameCount, manifest.EventCount)

	//2.- Replay the event timeline in order.
	events, err := replay.LoadEvents(bundleDir)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	for _, event := range events {
		fmt.Printf("  event tick=%d type=%s at=%s\n", event.Tick, event.Type, event.CapturedAt)
	}

	//3.- Walk the frame stream and report what the codec sees.
	loaded, err := replay.LoadFrames(bundleDir)
	if err != nil {
		return fmt.Errorf("load frames: %w", err)
	}
	if !listFrames {
		if len(loaded) > 0 {
			first, last := loaded[0], loaded[len(loaded)-1]
			fmt.Printf("  frames tick %d..%d\n", first.Tick, last.Tick)
		}
		return nil
	}
	for _, entry := range loaded {
		frame, err := stream.Decode(entry.Payload)
		if err != nil {
			fmt.Printf("  frame tick=%d UNDECODABLE: %v\n", entry.Tick, err)
			continue
		}
		fmt.Printf("  frame tick=%d shape=%s points=%d captured=%s\n",
			frame.Tick, frame.Shape, len(frame.Points), entry.CapturedAt.Format("15:04:05.000"))
	}
	return nil
}
