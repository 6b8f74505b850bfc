package replay

import "time"

// Clock 抽象调度源，便于测试用假时钟驱动回放。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer 是可取消的一次性定时器句柄。
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock 返回基于 time 包的真实时钟。
func SystemClock() Clock { return realClock{} }
