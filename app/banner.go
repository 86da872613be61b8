// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

var methodColors = map[string]string{
	http.MethodGet:     "10",
	http.MethodPost:    "12",
	http.MethodPut:     "11",
	http.MethodDelete:  "9",
	http.MethodPatch:   "13",
	http.MethodHead:    "14",
	http.MethodOptions: "7",
}

// colorWriter strips ANSI sequences in production and downsamples them to
// the terminal's capabilities otherwise.
func (a *App) colorWriter(w io.Writer) *colorprofile.Writer {
	cpw := colorprofile.NewWriter(w, os.Environ())
	if a.settings.Service.Environment == EnvironmentProduction {
		cpw.Profile = colorprofile.NoTTY
	}
	return cpw
}

// printStartupBanner prints the service name, address, observability
// state and, in development, the route table.
func (a *App) printStartupBanner(addr string) {
	if a.bannerOut == nil {
		return
	}
	w := a.colorWriter(a.bannerOut)
	dev := a.settings.Service.Environment == EnvironmentDevelopment

	gradient := []string{"10", "11"}
	if dev {
		gradient = []string{"12", "14", "10", "11"}
	}
	var art strings.Builder
	for _, line := range figure.NewFigure(a.settings.Service.Name, "", false).Slicify() {
		if strings.TrimSpace(line) == "" {
			art.WriteString("\n")
			continue
		}
		for i, ch := range line {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[i%len(gradient)])).Bold(true)
			art.WriteString(style.Render(string(ch)))
		}
		art.WriteString("\n")
	}

	category := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(14).PaddingLeft(2)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	disabled := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	if strings.HasPrefix(addr, ":") || strings.HasPrefix(addr, "[::]") {
		addr = "0.0.0.0" + addr[strings.LastIndex(addr, ":"):]
	}
	display := "http://" + addr

	line := func(b *strings.Builder, name, v string, color string) {
		b.WriteString(label.Render(name+":") + "  " + value.Foreground(lipgloss.Color(color)).Render(v) + "\n")
	}
	toggle := func(b *strings.Builder, name string, on bool, detail string) {
		if !on {
			b.WriteString(label.Render(name+":") + "  " + disabled.Render("Disabled") + "\n")
			return
		}
		line(b, name, detail, "13")
	}

	var out strings.Builder
	out.WriteString(category.Render("Service") + "\n")
	line(&out, "Version", a.settings.Service.Version, "14")
	line(&out, "Environment", a.settings.Service.Environment, "11")
	line(&out, "Address", display, "10")

	out.WriteString("\n" + category.Render("Pipeline") + "\n")
	toggle(&out, "Metrics", a.metrics != nil, display+a.settings.Metrics.Path)
	toggle(&out, "Tracing", a.tracer != nil, "Enabled")
	toggle(&out, "CORS", a.policy != nil, strings.Join(a.settings.CORS.AllowOrigins, ", "))
	toggle(&out, "Rate limit", a.limiter != nil, fmt.Sprintf("%g/s burst %d", a.settings.RateLimit.RequestsPerSecond, a.settings.RateLimit.Burst))
	toggle(&out, "Compression", a.settings.Compression.Enabled, "from "+humanize.IBytes(uint64(max(a.settings.Compression.MinSize, 0))))
	toggle(&out, "Access log", a.settings.AccessLog.Enabled, fmt.Sprintf("sample %g, slow %s", a.settings.AccessLog.SampleRate, a.settings.AccessLog.SlowThreshold))
	toggle(&out, "Security", a.settings.Security.Enabled, "Enabled")
	line(&out, "Body limit", humanize.IBytes(uint64(max(a.settings.Converters.MaxBodyBytes, 0))), "14")

	fmt.Fprintln(w)
	fmt.Fprint(w, art.String())
	fmt.Fprintln(w)
	fmt.Fprint(w, out.String())
	if dev && len(a.Routes()) > 0 {
		fmt.Fprintln(w)
		a.renderRoutes(w, 80, true)
	}
	fmt.Fprintln(w)
}

// PrintRoutes writes the route table to w without colors.
func (a *App) PrintRoutes(w io.Writer) {
	a.renderRoutes(w, 120, false)
}

func (a *App) renderRoutes(w io.Writer, width int, colors bool) {
	routes := a.Routes()
	if len(routes) == 0 {
		return
	}
	rows := make([][]string, 0, len(routes))
	for _, r := range routes {
		method := r.Method
		if c, ok := methodColors[method]; ok && colors {
			method = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true).Render(method)
		}
		rows = append(rows, []string{method, r.Path, r.Resource + "." + r.Handler})
	}

	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = min(width, tw)
		}
	}

	border := lipgloss.NewStyle()
	if colors {
		border = border.Foreground(lipgloss.Color("240"))
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow && colors {
				style = style.Bold(true).Foreground(lipgloss.Color("230"))
			}
			return style
		}).
		Headers("Method", "Path", "Handler").
		Rows(rows...).
		Width(max(60, width))
	fmt.Fprintln(w, t.Render())
}
