package processor

import (
	"UberFareAnalysis/src/datasource/file"
	"errors"
)

var (
	// ErrNoData 数据集尚未加载成功
	ErrNoData = errors.New("数据集未加载")
	// ErrEmptyResult 过滤后没有数据
	ErrEmptyResult = errors.New("过滤后无数据")
	// ErrUnknownCategory 分类名称不存在
	ErrUnknownCategory = errors.New("未知分类")
	// ErrInvalidRange 区间参数非法
	ErrInvalidRange = errors.New("区间参数非法")
	// ErrMissingColumn 缺少清洗所需的列, 与读取阶段返回的错误相同
	ErrMissingColumn = file.ErrMissingColumn
)
