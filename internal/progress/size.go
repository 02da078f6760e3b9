package progress

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"B", "kB", "MB", "GB", "TB"}

// FormatSize 以 1024 为基数格式化字节数，保留两位小数并去掉多余的零
// 1536 -> "1.5kB"，0 -> "0B"；NaN 或无穷返回空字符串，由调用方省略大小
func FormatSize(bytes float64) string {
	if math.IsNaN(bytes) || math.IsInf(bytes, 0) {
		return ""
	}

	// i = floor(log1024(bytes))，用整数幂比较避免 Log 的舍入误差
	i := 0
	for abs := math.Abs(bytes); i < len(sizeUnits)-1 && abs >= math.Pow(1024, float64(i+1)); i++ {
	}

	v := bytes / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + sizeUnits[i]
}
