package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ivlev/simcapture/internal/session"
)

// ReportExporter writes a markdown provenance record of the session: summary
// stats, the physics manifest and the capturing host.
type ReportExporter struct{}

func (ReportExporter) Format() Format { return FormatReport }

func (ReportExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil {
		s = &session.Session{}
	}
	var b strings.Builder
	cfg := &s.Scene

	title := cfg.Scene.Name
	if title == "" {
		title = "Untitled scene"
	}
	fmt.Fprintf(&b, "# Capture report: %s\n\n", title)
	if cfg.Scene.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", cfg.Scene.Description)
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", s.ID)
	fmt.Fprintf(&b, "- Started: %s\n", s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Frames: %d\n", len(s.Frames))
	fmt.Fprintf(&b, "- Duration: %.3f s\n", s.Duration().Seconds())
	fmt.Fprintf(&b, "- Total instances: %d\n", cfg.TotalInstances())
	fmt.Fprintf(&b, "- Annotations: %d\n", s.ObjectCount())
	fmt.Fprintf(&b, "- Resolution: %dx%d\n", s.Resolution.Width, s.Resolution.Height)
	if s.HasVideo() {
		fmt.Fprintf(&b, "- Video: %s, %d bytes\n", s.VideoExt, len(s.Video))
	} else {
		b.WriteString("- Video: not captured\n")
	}

	b.WriteString("\n## Physics\n\n")
	fmt.Fprintf(&b, "- Gravity: (%g, %g, %g)\n", cfg.Gravity.X, cfg.Gravity.Y, cfg.Gravity.Z)
	fmt.Fprintf(&b, "- Time step: %g s\n", cfg.Simulation.TimeStep)
	fmt.Fprintf(&b, "- Substeps: %d\n", cfg.Simulation.Substeps)

	b.WriteString("\n## Asset groups\n\n")
	if len(cfg.AssetGroups) == 0 {
		b.WriteString("_none_\n")
	} else {
		b.WriteString("| Class | Name | Count | Shape | Body | Mass | Friction | Restitution | Lin. damping | Ang. damping |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
		for i, g := range cfg.AssetGroups {
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %s | %g | %g | %g | %g | %g |\n",
				i+1, g.Name, g.Count, g.Shape, g.RigidBodyType,
				g.Mass, g.Friction, g.Restitution, g.LinearDamping, g.AngularDamping)
		}
	}

	b.WriteString("\n## Annotations per class\n\n")
	counts, labels := classCounts(s)
	if len(counts) == 0 {
		b.WriteString("_none_\n")
	} else {
		ids := make([]int, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		b.WriteString("| Class | Label | Boxes |\n|---|---|---|\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "| %d | %s | %d |\n", id, labels[id], counts[id])
		}
	}

	if h := s.Host; h != nil {
		b.WriteString("\n## Host\n\n")
		fmt.Fprintf(&b, "- Hostname: %s\n", h.Hostname)
		fmt.Fprintf(&b, "- OS: %s %s (%s)\n", h.OS, h.Platform, h.Arch)
		fmt.Fprintf(&b, "- CPU: %s, %d logical cores\n", h.CPUModel, h.LogicalCPUs)
		fmt.Fprintf(&b, "- Memory: %d MiB\n", h.TotalMemory>>20)
		if h.Encoder != "" {
			fmt.Fprintf(&b, "- Encoder: %s\n", h.Encoder)
		}
	}

	return &Artifact{
		Filename:    baseName(s) + "_report.md",
		ContentType: "text/markdown",
		Data:        []byte(b.String()),
	}, nil
}

func classCounts(s *session.Session) (map[int]int, map[int]string) {
	counts := make(map[int]int)
	labels := make(map[int]string)
	for _, f := range s.Frames {
		for _, o := range f.Objects {
			counts[o.ClassID]++
			if _, ok := labels[o.ClassID]; !ok {
				labels[o.ClassID] = o.Label
			}
		}
	}
	return counts, labels
}
