package main

import (
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"text/template"

	"github.com/alecthomas/kingpin"
	"github.com/sirupsen/logrus"
)

var packagePath = kingpin.Arg("package", "Go package path").Required().String()
var packageSymbol = kingpin.Arg("symbol", "Constructor exported by the plugin package").Default("New").String()
var outputPath = kingpin.Flag("output", "Directory where the file should be written to").Short('o').Default(".").String()
var extension = kingpin.Flag("ext", "File extension of the plugin library").Default("so").String()

// the generated main package exports the constructor under the symbol
// name the plugin manager looks up
var tmpl = template.Must(template.New("plugin").Parse(`// Code generated by build-plugin. DO NOT EDIT.

package main

import (
	"github.com/ppacher/luaplug/pkg/plugin"
	p "{{.Package}}"
)

// CreatePlugin is looked up by the plugin manager
func CreatePlugin() plugin.Plugin {
	return p.{{.Symbol}}()
}

func main() {}
`))

func render(w io.Writer, pkg, symbol string) error {
	return tmpl.Execute(w, map[string]string{
		"Package": pkg,
		"Symbol":  symbol,
	})
}

func main() {
	kingpin.Parse()

	dir, err := os.MkdirTemp("", "luaplug-plugin")
	if err != nil {
		logrus.Fatal(err)
	}
	defer os.RemoveAll(dir) // clean up

	source := filepath.Join(dir, "main.go")

	f, err := os.Create(source)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := render(f, *packagePath, *packageSymbol); err != nil {
		f.Close()
		logrus.Fatal(err)
	}
	f.Close()

	output, err := filepath.Abs(filepath.Join(*outputPath, path.Base(*packagePath)+"."+*extension))
	if err != nil {
		logrus.Fatal(err)
	}

	cmd := exec.Command("go", "build", "-o", output, "-buildmode=plugin", "-ldflags", "-s -w", source)
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stdout

	logrus.Infof("building %s", output)

	if err := cmd.Run(); err != nil {
		logrus.Fatal(err)
	}
}
