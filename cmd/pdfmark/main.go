package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"pdfmark/internal/annot"
	"pdfmark/internal/config"
	"pdfmark/internal/document"
	"pdfmark/internal/history"
	"pdfmark/internal/library"
)

var cli struct {
	Config  string `short:"c" type:"path" help:"Path to config file"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	List   ListCmd   `cmd:"" help:"List the annotations of a document"`
	Recent RecentCmd `cmd:"" help:"List recently opened documents"`
	Import ImportCmd `cmd:"" help:"Import annotations into a document's layer"`
	Export ExportCmd `cmd:"" help:"Export a document's layer"`
	Render RenderCmd `cmd:"" help:"Render a page with its annotations to PNG"`
	Scrub  ScrubCmd  `cmd:"" help:"Remove every annotation from a document's layer"`
}

type appContext struct {
	cfg *config.Config
	mgr *document.Manager
	log *logrus.Logger
}

func main() {
	ctx := kong.Parse(&cli)

	cfg, err := config.Load(cli.Config)
	ctx.FatalIfErrorf(err)

	log := newLogger(cfg)
	if cli.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	mgr, err := document.NewManager(cfg, log)
	ctx.FatalIfErrorf(err)
	defer mgr.Close()

	err = ctx.Run(&appContext{cfg: cfg, mgr: mgr, log: log})
	ctx.FatalIfErrorf(err)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

type ListCmd struct {
	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

type listEntry struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Page     int    `json:"page"`
	Color    string `json:"color,omitempty"`
	Category string `json:"colorCategory,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Z        int    `json:"z"`
}

func (c *ListCmd) Run(app *appContext) error {
	s, err := app.mgr.Open(c.InputPDF)
	if err != nil {
		return err
	}

	entries := []listEntry{}
	for _, a := range s.Annotations() {
		entries = append(entries, listEntry{
			ID:       a.ID,
			Type:     string(a.Kind),
			Page:     a.Page + 1,
			Color:    a.Style.Color,
			Category: annot.ColorCategory(a.Style.Color),
			Comment:  a.Text,
			Z:        a.Z,
		})
	}

	out, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type RecentCmd struct {
	Limit int `default:"10" help:"Number of documents to list"`
}

func (c *RecentCmd) Run(app *appContext) error {
	docs, err := app.mgr.Library().Recent(c.Limit)
	if err != nil {
		return err
	}
	for _, d := range docs {
		n, err := app.mgr.Library().AnnotationCount(d.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d pages\t%d annotations\n", d.Path, d.Pages, n)
	}
	return nil
}

type ImportCmd struct {
	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
	Layer    string `short:"l" type:"path" help:"JSON layer file to merge"`
	Embedded bool   `short:"e" help:"Import the PDF's own annotation objects"`
}

func (c *ImportCmd) Run(app *appContext) error {
	if c.Layer == "" && !c.Embedded {
		return fmt.Errorf("nothing to import: pass --layer or --embedded")
	}

	s, err := app.mgr.Open(c.InputPDF)
	if err != nil {
		return err
	}

	total := 0
	if c.Embedded {
		n, err := s.ImportEmbedded()
		if err != nil {
			return err
		}
		total += n
	}
	if c.Layer != "" {
		n, warnings, err := s.ImportLayer(c.Layer)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			app.log.Warn(w.String())
		}
		total += n
	}

	if err := s.Save(); err != nil {
		return err
	}
	fmt.Printf("imported %d annotations\n", total)
	return nil
}

type ExportCmd struct {
	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
	Layer    string `short:"l" type:"path" help:"Write the layer as JSON to this path"`
	PDF      string `short:"p" type:"path" help:"Write an annotated PDF copy to this path"`
}

func (c *ExportCmd) Run(app *appContext) error {
	if c.Layer == "" && c.PDF == "" {
		return fmt.Errorf("nothing to export: pass --layer or --pdf")
	}

	s, err := app.mgr.Open(c.InputPDF)
	if err != nil {
		return err
	}

	if c.Layer != "" {
		if err := s.ExportLayer(c.Layer); err != nil {
			return err
		}
	}
	if c.PDF != "" {
		if err := s.ExportPDF(c.PDF); err != nil {
			return err
		}
	}
	return nil
}

type RenderCmd struct {
	InputPDF string  `arg:"" name:"input" help:"Path to input PDF" type:"path"`
	Output   string  `short:"o" default:"page.png" type:"path" help:"Output PNG path"`
	Page     int     `short:"p" default:"1" help:"Page number, 1-based"`
	Zoom     float64 `short:"z" default:"1.0" help:"Zoom factor"`
	Rotation int     `short:"r" default:"0" enum:"0,90,180,270" help:"View rotation in degrees"`
	Prefetch bool    `help:"Warm the raster cache around the page"`
}

func (c *RenderCmd) Run(app *appContext) error {
	s, err := app.mgr.Open(c.InputPDF)
	if err != nil {
		return err
	}

	vs := library.DefaultViewState()
	vs.Page = c.Page - 1
	vs.Zoom = c.Zoom
	vs.Rotation = c.Rotation
	if err := s.SetView(vs); err != nil {
		return err
	}

	if c.Prefetch {
		if err := s.Prefetch(context.Background(), app.cfg.Render.PrefetchRadius); err != nil {
			return err
		}
	}

	img, err := s.Render(vs.Page)
	if err != nil {
		return err
	}

	f, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

type ScrubCmd struct {
	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

func (c *ScrubCmd) Run(app *appContext) error {
	s, err := app.mgr.Open(c.InputPDF)
	if err != nil {
		return err
	}

	n := 0
	for _, a := range s.Annotations() {
		s.History().Execute(history.NewDelete(a))
		n++
	}
	if err := s.Save(); err != nil {
		return err
	}
	fmt.Printf("removed %d annotations\n", n)
	return nil
}
