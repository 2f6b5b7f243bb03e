package web

import (
	"UberFareAnalysis/src/plot"
	"UberFareAnalysis/src/processor"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type chartFunc func(w io.Writer, snap processor.Snapshot, f filters) error

func (s *Server) chartFuncs() map[string]chartFunc {
	dcfg := s.ds.DataConfig()
	cols := dcfg.Columns

	return map[string]chartFunc{
		"passenger-fare": func(w io.Writer, snap processor.Snapshot, f filters) error {
			groups, err := processor.PassengerFare(snap.Frame, cols, f.PMin, f.PMax)
			if err != nil {
				return err
			}
			labels, values := keyedMeans(groups)
			return plot.Bar(w, "Average Fare by Passenger Count", "Average Fare ($)", labels, values)
		},
		"hourly-fare": func(w io.Writer, snap processor.Snapshot, f filters) error {
			groups, err := processor.HourlyFare(snap.Frame, dcfg, f.TCat, f.HMin, f.HMax)
			if err != nil {
				return err
			}
			xs := make([]float64, len(groups))
			ys := make([]float64, len(groups))
			for i, g := range groups {
				xs[i], ys[i] = float64(g.Key), g.Mean
			}
			return plot.Line(w, "Average Fare by Hour ("+f.TCat+")", "Hour of Day", "Average Fare ($)", xs, ys)
		},
		"fare-hist": func(w io.Writer, snap processor.Snapshot, f filters) error {
			h, err := processor.FareDistribution(snap.Frame, dcfg, f.FCat)
			if err != nil {
				return err
			}
			return plot.Histogram(w, "Fare Amount Distribution ("+f.FCat+")", "Fare Amount ($)", h.Edges, h.Counts, h.KDE)
		},
		"passenger-count": func(w io.Writer, snap processor.Snapshot, _ filters) error {
			counts, err := processor.PassengerDistribution(snap.Frame, cols)
			if err != nil {
				return err
			}
			labels := make([]string, len(counts))
			values := make([]float64, len(counts))
			for i, g := range counts {
				labels[i] = strconv.Itoa(g.Key)
				values[i] = float64(g.Count)
			}
			return plot.Bar(w, "Passenger Count Distribution", "Trips", labels, values)
		},
		"weekday-fare": func(w io.Writer, snap processor.Snapshot, _ filters) error {
			groups, err := processor.WeekdayFare(snap.Frame, cols)
			if err != nil {
				return err
			}
			labels := make([]string, len(groups))
			values := make([]float64, len(groups))
			for i, g := range groups {
				labels[i] = g.Label
				values[i] = g.Mean
			}
			return plot.Bar(w, "Average Fare by Day of Week", "Average Fare ($)", labels, values)
		},
		"correlation": func(w io.Writer, snap processor.Snapshot, _ filters) error {
			m, err := processor.Correlation(snap.Frame, cols)
			if err != nil {
				return err
			}
			return plot.Heatmap(w, "Correlation Matrix", m.Rows, m.Cols, floats(m.Values), plot.Diverging, true)
		},
		"heatmap": func(w io.Writer, snap processor.Snapshot, _ filters) error {
			m, err := processor.HourWeekdayMatrix(snap.Frame, cols)
			if err != nil {
				return err
			}
			return plot.Heatmap(w, "Average Fare by Day of Week and Hour", m.Rows, m.Cols, floats(m.Values), plot.Sequential, false)
		},
		"map": func(w io.Writer, snap processor.Snapshot, f filters) error {
			p, err := processor.PickupPoints(snap.Frame, cols, float64(f.Q)/100, dcfg.MapPoints)
			if err != nil {
				return err
			}
			b := dcfg.Bounds
			return plot.Scatter(w,
				fmt.Sprintf("Pickup Locations (fare <= $%.2f, %d trips)", p.Threshold, p.Total),
				"Longitude", "Latitude", p.Lons, p.Lats,
				[2]float64{b.LonMin, b.LonMax}, [2]float64{b.LatMin, b.LatMax})
		},
	}
}

// chart GET /chart/:name.png
// 筛选后无数据时返回占位图
func (s *Server) chart(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".png")
	fn, ok := s.charts[name]
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "未知图表: "+name)
		return
	}
	snap, f, ok := s.load(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	status := http.StatusOK
	err := fn(&buf, snap, f)
	switch {
	case errors.Is(err, processor.ErrEmptyResult):
		buf.Reset()
		if err := plot.Placeholder(&buf, plot.Width, plot.Height, "No data for the selected filters"); err != nil {
			respondErr(c, err)
			return
		}
	case err != nil && buf.Len() == 0:
		respondErr(c, err)
		return
	case err != nil:
		// 渲染失败时 buf 中已是占位图
		s.logger.Error(fmt.Sprintf("[%s] 图表 %s 渲染失败: %v", GetRequestID(c), name, err))
		status = http.StatusInternalServerError
	}
	c.Header("Cache-Control", "no-store")
	c.Data(status, "image/png", buf.Bytes())
}

func keyedMeans(groups []processor.GroupMean) ([]string, []float64) {
	labels := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		labels[i] = strconv.Itoa(g.Key)
		values[i] = g.Mean
	}
	return labels, values
}

func floats(values [][]processor.Float) [][]float64 {
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = float64(v)
		}
	}
	return out
}
