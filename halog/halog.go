// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package halog is the ambient logging wrapper used across the core.
// It replaces the source's raw cout traces (see defaultMappedSegment.cpp
// and halLodExtract.cpp) with leveled, disableable logging: silent by
// default, never load-bearing for correctness. It carries no
// CLI/progress-bar functionality, both of which spec.md §1 places out of
// scope.
package halog

import (
	"github.com/mattn/go-colorable"
	logging "github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("halcore")

func init() {
	// colorable.NewColorableStderr strips/translates ANSI color codes so
	// %{color} in the formatter below renders correctly on Windows
	// terminals too, not just ANSI-native ones.
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	formatter := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{level:.4s} %{shortfunc}: %{message}%{color:reset}`,
	)
	formatted := logging.NewBackendFormatter(backend, formatter)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.WARNING, "")
	logging.SetBackend(leveled)
}

// SetLevel adjusts the minimum level emitted, for every module. The
// level installed by init is WARNING.
func SetLevel(level logging.Level) {
	logging.SetLevel(level, "")
}

// Debugf logs a debug-level trace: genome open/close lifecycle,
// per-hop mapper decisions, per-block lodextract progress.
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }

// Infof logs an info-level line: which internal node lodextract is
// converting, how many blocks/segments it produced.
func Infof(format string, args ...interface{}) { log.Infof(format, args...) }

// Warnf logs a colorized warning-level line. No package in this module
// calls it; the core's invariant checks return ErrConsistency instead.
func Warnf(format string, args ...interface{}) {
	log.Warningf(format, args...)
}
