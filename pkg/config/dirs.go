package config

import "path/filepath"

type Directories struct {
	home string
}

func (d Directories) Home() string {
	return d.home
}

func (d Directories) Store() string {
	return filepath.Join(d.home, "store")
}
