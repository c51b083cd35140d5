package cache

import (
	"sync"
)

// 模拟模式相关变量，Redis不可用时（本地开发、单元测试）退化为进程内存储
var (
	mockMode  bool
	mockMutex sync.Mutex
	mockData  = make(map[string]int64)
)

// IsMockMode 返回当前是否处于模拟模式
func IsMockMode() bool {
	return mockMode
}

// ResetMock 清空模拟数据，测试隔离用
func ResetMock() {
	mockMutex.Lock()
	defer mockMutex.Unlock()
	mockData = make(map[string]int64)
}
