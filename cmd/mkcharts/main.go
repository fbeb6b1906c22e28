// Command mkcharts samples the delays produced by the jitter policies and
// charts their distributions.
//
// Usage:
//
//	mkcharts [-out dir] [-samples n]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"andy.dev/redo/v2/policy"
)

const (
	minD       = time.Second
	maxSeconds = 5
	maxD       = maxSeconds * time.Second

	slotsPerSec = 10
	totalSlots  = maxSeconds * slotsPerSec
	triesPer    = 5
	runLength   = 30
)

type algorithm struct {
	name   string
	short  string
	policy policy.Policy
}

// sampleRun feeds runLength failures to p through a fresh state and returns
// the delays it decides on.
func sampleRun(p policy.Policy, n int) []float64 {
	start := time.Now()
	s := policy.NewState(context.Background(), start)
	defer s.Finish()
	errFailed := fmt.Errorf("failed")
	out := make([]float64, 0, n)
	now := start
	for i := 0; i < n; i++ {
		s.Record(errFailed, now)
		d, err := p(s, nil)
		if err != nil {
			log.Fatalf("policy gave up on attempt %d: %v", s.Attempt(), err)
		}
		s.Schedule(d)
		now = now.Add(d)
		out = append(out, d.Seconds())
	}
	return out
}

func algorithms() []algorithm {
	return []algorithm{
		{
			name:   "Polly Jitter",
			short:  "polly",
			policy: policy.PollyJitter(minD, maxD),
		},
		{
			name:   "Decorrelated Jitter",
			short:  "decorr",
			policy: policy.DecorrelatedJitter(minD, maxD),
		},
		{
			name:  "Exponential Backoff w/ Full Jitter",
			short: "expo",
			policy: policy.Join(
				policy.FullJitter(),
				policy.Backoff(minD, 2, maxD),
			),
		},
	}
}

func main() {
	out := flag.String("out", "charts", "output directory")
	samples := flag.Int("samples", 200_000, "runs sampled per algorithm")
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal(err)
	}
	algs := algorithms()
	summarize(algs, *samples/100)
	makeLines(algs, *out, *samples)
	makeHistograms(algs, *out, *samples)
}

// summarize prints the mean and standard deviation of the delay of each try.
func summarize(algs []algorithm, runs int) {
	for _, a := range algs {
		tries := make([][]float64, triesPer)
		for i := 0; i < runs; i++ {
			for j, d := range sampleRun(a.policy, triesPer) {
				tries[j] = append(tries[j], d)
			}
		}
		fmt.Println(a.name)
		for j, ds := range tries {
			mean, std := stat.MeanStdDev(ds, nil)
			fmt.Printf("  try %d: mean %.3fs stddev %.3fs\n", j+1, mean, std)
		}
	}
}

func makeLines(algs []algorithm, dir string, runs int) {
	p := plot.New()
	p.X.Label.Text = fmt.Sprintf(
		"Retry times across %d tries with cutoff at %d seconds",
		runLength, maxSeconds,
	)
	p.Y.Max = 0.15
	p.Y.Label.Text = "Percentage of total calls"
	p.Y.Tick.Marker = pctTicks{}
	p.X.Tick.Marker = secTicks()

	for ai, a := range algs {
		slots := make(slotPlotter, totalSlots)
		for i := 0; i < runs; i++ {
			t := 0.0
			for _, d := range sampleRun(a.policy, runLength) {
				t += d
				x := int(t*slotsPerSec + 1)
				if x >= 0 && x < totalSlots {
					slots[x] += 1.0 / float64(runs)
				}
			}
		}

		l, err := plotter.NewLine(slots)
		if err != nil {
			log.Fatal(err)
		}
		l.LineStyle.Width = vg.Points(1)
		l.LineStyle.Color = plotutil.Color(ai)
		p.Add(l)
		p.Legend.Add(a.name, l)
		p.Legend.Top = true

		if peaks := localMaxima(l, 0.0055); peaks != nil {
			pts, err := plotter.NewScatter(peaks)
			if err != nil {
				log.Fatal(err)
			}
			pts.GlyphStyle = draw.GlyphStyle{
				Color:  color.Black,
				Radius: 4,
				Shape:  draw.TriangleGlyph{},
			}
			p.Add(pts)
		}
	}
	file := chartname(dir, "dists")
	fmt.Println(file)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, file); err != nil {
		log.Fatal(err)
	}
}

func makeHistograms(algs []algorithm, dir string, runs int) {
	const cols = 3

	delays := make(valuePlotter, runs*triesPer)
	for _, a := range algs {
		for i := 0; i < runs; i++ {
			copy(delays[i*triesPer:], sampleRun(a.policy, triesPer))
		}

		rows := numRows(cols, triesPer)
		plots := make([][]*plot.Plot, rows)
		for i := range plots {
			plots[i] = make([]*plot.Plot, cols)
		}
		for i := 0; i < triesPer; i++ {
			h, err := plotter.NewHist(delays.Subset(triesPer, i), totalSlots)
			if err != nil {
				log.Fatal(err)
			}
			h.Normalize(100)
			p := plot.New()
			p.Title.Text = fmt.Sprintf("%s: try %d", a.short, i+1)
			p.Add(h)
			plots[i/cols][i%cols] = p
		}

		img := vgimg.New(cols*4*vg.Inch, font.Length(rows)*4*vg.Inch)
		dc := draw.New(img)
		tiles := draw.Tiles{Rows: rows, Cols: cols}
		canvases := plot.Align(plots, tiles, dc)
		for j := 0; j < tiles.Rows; j++ {
			for i := 0; i < tiles.Cols; i++ {
				if plots[j][i] != nil {
					plots[j][i].Draw(canvases[j][i])
				}
			}
		}

		file := chartname(dir, a.short, "hist", "tries")
		fmt.Println(file)
		w, err := os.Create(file)
		if err != nil {
			log.Fatalf("os.Create: %v", err)
		}
		if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
			log.Fatalf("PngCanvas.WriteTo(): %v", err)
		}
		if err := w.Close(); err != nil {
			log.Fatal(err)
		}
	}
}

type slotPlotter []float64

func (sp slotPlotter) Len() int {
	return len(sp)
}

func (sp slotPlotter) XY(idx int) (x, y float64) {
	return float64(idx), sp[idx]
}

type valuePlotter []float64

func (vp valuePlotter) Len() int {
	return len(vp)
}

func (vp valuePlotter) Value(i int) float64 {
	return vp[i]
}

// Subset views every divisor-th value starting at offset.
func (vp valuePlotter) Subset(divisor, offset int) subsetValuePlotter {
	return subsetValuePlotter{vp: vp, d: divisor, o: offset}
}

type subsetValuePlotter struct {
	vp valuePlotter
	d  int
	o  int
}

func (sp subsetValuePlotter) Len() int {
	return len(sp.vp) / sp.d
}

func (sp subsetValuePlotter) Value(i int) float64 {
	return sp.vp[i*sp.d+sp.o]
}

type pctTicks struct{}

// Ticks computes the default tick marks, labelling the major ones as
// percentages.
func (pctTicks) Ticks(min, max float64) []plot.Tick {
	tks := plot.DefaultTicks{}.Ticks(min, max)
	for i, t := range tks {
		if t.Label != "" {
			tks[i].Label = strconv.FormatFloat(t.Value*100, 'G', -1, 64) + "%"
		}
	}
	return tks
}

func secTicks() plot.ConstantTicks {
	ticks := make([]plot.Tick, 0, maxSeconds)
	for i := 1; i <= maxSeconds; i++ {
		ticks = append(ticks, plot.Tick{
			Value: float64(i * slotsPerSec),
			Label: fmt.Sprintf("%ds", i),
		})
	}
	return ticks
}

// crude local maxima based on delta-y
func localMaxima(l *plotter.Line, dThreshold float64) plotter.XYer {
	var ms plotter.XYs
	for i, p := range l.XYs {
		ismax := false
		switch i {
		case 0:
			ismax = p.Y > l.XYs[i+1].Y
		case len(l.XYs) - 1:
			continue
		default:
			prev, next := l.XYs[i-1].Y, l.XYs[i+1].Y
			ismax = p.Y > prev && p.Y > next && (p.Y-prev)+(p.Y-next) >= dThreshold
		}
		if ismax {
			ms = append(ms, p)
		}
	}
	if len(ms) > 0 {
		return ms
	}
	return nil
}

func chartname(dir string, parts ...any) string {
	var fname []byte
	for i, p := range parts {
		fname = fmt.Append(fname, p)
		if i < len(parts)-1 {
			fname = append(fname, '_')
		}
	}
	return filepath.Join(dir, string(fname)+".png")
}

func numRows(columns, total int) int {
	return (total + columns - 1) / columns
}
