package util

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Trace 记录一段代码的耗时，用法：defer util.Trace("matte")()
func Trace(msg string) func() {
	start := time.Now()
	logrus.Debugf("enter %s", msg)
	return func() {
		logrus.WithField("elapsed", time.Since(start)).Infof("exit %s", msg)
	}
}
