package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/johker/phtm/internal/schema"
)

func main() {
	lang := flag.String("lang", "ts", "target language: go, js, ts or rs")
	in := flag.String("schema", "", "message table to render (default: built-in msg_ids.yaml)")
	out := flag.String("out", "", "output file (default stdout)")
	pkg := flag.String("pkg", "msgids", "package name for -lang go")
	flag.Parse()

	if err := run(*lang, *in, *out, *pkg); err != nil {
		logrus.WithError(err).Fatal("msggen failed")
	}
}

func run(lang, in, out, pkg string) error {
	s, err := loadSchema(in)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := s.Render(w, lang, pkg); err != nil {
		return fmt.Errorf("render %s: %w", lang, err)
	}
	if out != "" {
		logrus.WithFields(logrus.Fields{"lang": lang, "out": out}).Info("bindings written")
	}
	return nil
}

func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return schema.Load(f)
}
