package web

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/processor"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DefaultQuantile 地图默认保留的车费分位数(百分比)
const DefaultQuantile = 99

// filterQuery 页面控件对应的查询参数, 未传的参数取默认值
type filterQuery struct {
	PMin *int   `form:"pmin"`
	PMax *int   `form:"pmax"`
	TCat string `form:"tcat"`
	HMin *int   `form:"hmin" binding:"omitempty,min=0,max=23"`
	HMax *int   `form:"hmax" binding:"omitempty,min=0,max=23"`
	FCat string `form:"fcat"`
	Q    *int   `form:"q" binding:"omitempty,min=50,max=100"`
}

// filters 解析后的筛选条件
type filters struct {
	PMin, PMax int
	TCat       string
	HMin, HMax int
	FCat       string
	Q          int
}

// defaultFilters 滑块取数据全范围, 单选取第一个分类
func defaultFilters(snap processor.Snapshot, dcfg *config.DataConfig) filters {
	pr := processor.PassengerRange(snap.Frame, dcfg.Columns)
	hr := processor.HourRange(snap.Frame)
	f := filters{PMin: pr.Min, PMax: pr.Max, HMin: hr.Min, HMax: hr.Max, Q: DefaultQuantile}
	if len(dcfg.TimeCategories) > 0 {
		f.TCat = dcfg.TimeCategories[0].Name
	}
	if len(dcfg.FareCategories) > 0 {
		f.FCat = dcfg.FareCategories[0].Name
	}
	return f
}

// parseFilters 绑定并校验查询参数
func parseFilters(c *gin.Context, snap processor.Snapshot, dcfg *config.DataConfig) (filters, error) {
	f := defaultFilters(snap, dcfg)

	var q filterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return f, fmt.Errorf("%w: %v", processor.ErrInvalidRange, err)
	}
	setInt(&f.PMin, q.PMin)
	setInt(&f.PMax, q.PMax)
	setInt(&f.HMin, q.HMin)
	setInt(&f.HMax, q.HMax)
	setInt(&f.Q, q.Q)
	if q.TCat != "" {
		f.TCat = q.TCat
	}
	if q.FCat != "" {
		f.FCat = q.FCat
	}

	if f.PMin > f.PMax {
		return f, fmt.Errorf("%w: pmin %d > pmax %d", processor.ErrInvalidRange, f.PMin, f.PMax)
	}
	if f.HMin > f.HMax {
		return f, fmt.Errorf("%w: hmin %d > hmax %d", processor.ErrInvalidRange, f.HMin, f.HMax)
	}
	if _, ok := dcfg.GetTimeCategory(f.TCat); !ok {
		return f, fmt.Errorf("%w: %s", processor.ErrUnknownCategory, f.TCat)
	}
	if _, ok := dcfg.GetFareCategory(f.FCat); !ok {
		return f, fmt.Errorf("%w: %s", processor.ErrUnknownCategory, f.FCat)
	}
	return f, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// values 编码为查询串, 供图片链接复用
func (f filters) values() url.Values {
	v := url.Values{}
	v.Set("pmin", strconv.Itoa(f.PMin))
	v.Set("pmax", strconv.Itoa(f.PMax))
	v.Set("tcat", f.TCat)
	v.Set("hmin", strconv.Itoa(f.HMin))
	v.Set("hmax", strconv.Itoa(f.HMax))
	v.Set("fcat", f.FCat)
	v.Set("q", strconv.Itoa(f.Q))
	return v
}
