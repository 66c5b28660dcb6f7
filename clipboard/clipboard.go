// Package clipboard copies improved answers out of the TUI so users can
// paste them into notes or application forms.
package clipboard

import cb "github.com/atotto/clipboard"

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}
