package utils

import "net/http"

// Doer 发送 HTTP 请求，http.Client 和测试替身都满足
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}
