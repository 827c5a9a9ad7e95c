// Package ansicolor holds the escape codes used by the pretty log writer.
package ansicolor

import (
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
)

var Reset = "\033[0m"
var Bold = "\033[1m"

var Red = "\033[31m"
var Yellow = "\033[33m"
var Blue = "\033[34m"
var Gray = "\033[37m"

var BgRed = "\033[41m"
var BgYellow = "\033[43m"
var BgBlue = "\033[44m"

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	if runtime.GOOS == "windows" || noColor || !isatty.IsTerminal(os.Stderr.Fd()) {
		Disable()
	}
}

// Disable turns every code into the empty string.
func Disable() {
	for _, c := range []*string{&Reset, &Bold, &Red, &Yellow, &Blue, &Gray, &BgRed, &BgYellow, &BgBlue} {
		*c = ""
	}
}
