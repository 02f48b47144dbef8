// Copyright 2026 The Originserver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package autoindex generates the on-disk directory-listing HTML page
// used when a Location has autoindex enabled and no index file is
// present. It mirrors the shape of Caddy's file-server "browse" feature
// (modules/caddyhttp/fileserver/browse*.go), trimmed to a single server-sorted
// table with no client-side assets.
package autoindex

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

// Entry describes one row of a directory listing.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

var page = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<hr>
<table>
<tr><th align="left">Name</th><th align="right">Size</th><th align="right">Last Modified</th></tr>
{{if .HasParent}}<tr><td><a href="../">../</a></td><td></td><td></td></tr>{{end}}
{{range .Entries}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td align="right">{{.SizeText}}</td><td align="right">{{.ModText}}</td></tr>
{{end}}</table>
<hr>
</body>
</html>
`))

type row struct {
	Name     string
	Href     string
	SizeText string
	ModText  string
}

type pageData struct {
	Path      string
	HasParent bool
	Entries   []row
}

// Render writes an HTML directory listing for urlPath (the URL path
// shown in the page title and used to build the parent-directory link)
// given its entries, sorted directories-first then lexically.
func Render(w io.Writer, urlPath string, entries []Entry) error {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		href := e.Name
		sizeText := humanSize(e.Size)
		if e.IsDir {
			name += "/"
			href += "/"
			sizeText = "-"
		}
		rows = append(rows, row{
			Name:     name,
			Href:     href,
			SizeText: sizeText,
			ModText:  e.ModTime.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	data := pageData{
		Path:      urlPath,
		HasParent: urlPath != "/" && urlPath != "",
		Entries:   rows,
	}
	return page.Execute(w, data)
}

// ReadDir lists the entries of a directory on disk, suitable for passing
// to Render.
func ReadDir(fsPath string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			IsDir:   de.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

func humanSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d", n)
	}
	units := []string{"K", "M", "G", "T"}
	f := float64(n)
	u := -1
	for f >= 1024 && u < len(units)-1 {
		f /= 1024
		u++
	}
	return fmt.Sprintf("%.1f%s", f, units[u])
}

// JoinURL joins a URL path prefix and a child name, keeping exactly one
// slash between them.
func JoinURL(prefix, name string) string {
	return path.Join(prefix, name)
}
