package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/suiteloader/internal/log"
)

// WriteDefaultConfig creates a commented config file with default values at configPath.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := encode(defaultDocument(Defaults()))
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

// SaveValue sets a top-level key in the config file, keeping comments and
// the formatting of every other section. The file is created if missing.
func SaveValue(configPath, key string, value any) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: user supplied config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level is not a mapping")
	}

	root := doc.Content[0]
	found := false
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			// Keep the existing line comment on the value
			valueNode.LineComment = root.Content[i+1].LineComment
			root.Content[i+1] = &valueNode
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content, scalar(key), &valueNode)
	}

	out, err := encode(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	log.Debug(log.CatConfig, "Saved config value", "path", configPath, "key", key)
	return nil
}

func encode(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}

// defaultDocument renders cfg as a commented document. Durations are written
// as strings ("500ms") which viper decodes back into time.Duration.
func defaultDocument(cfg Config) *yaml.Node {
	store := mapping(
		entry("path", scalar(cfg.Store.Path), "SQLite item database (empty disables persistence)"),
		entry("cache_ttl", scalar(cfg.Store.CacheTTL.String()), "read cache lifetime, 0 disables"),
	)
	tr := cfg.Tracing
	tracingNode := mapping(
		entry("enabled", boolean(tr.Enabled), ""),
		entry("exporter", scalar(tr.Exporter), "none, file, stdout or otlp"),
		entry("file_path", scalar(DefaultTracesFilePath()), "output of the file exporter"),
		entry("otlp_endpoint", scalar(tr.OTLPEndpoint), ""),
		entry("sample_rate", float(tr.SampleRate), "fraction of traces kept, 0.0 to 1.0"),
		entry("service_name", scalar(tr.ServiceName), ""),
	)

	root := mapping(
		entry("projects_dir", scalar(cfg.ProjectsDir), "directory scanned for <Kind>-<name>.yaml files"),
		entry("watch", boolean(cfg.Watch), "list keeps watching projects_dir and prints changes"),
		entry("debounce", scalar(cfg.Debounce.String()), "quiet period before changes are applied"),
		entry("store", store, ""),
		entry("tracing", tracingNode, ""),
		entry("debug", boolean(cfg.Debug), "same as --debug or SUITELOADER_DEBUG=1"),
		entry("log_file", scalar(cfg.LogFile), ""),
	)
	root.Content[0].HeadComment = "Suiteloader Configuration"
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

type pair struct {
	key, value *yaml.Node
}

func entry(key string, value *yaml.Node, comment string) pair {
	value.LineComment = comment
	return pair{key: scalar(key), value: value}
}

func mapping(pairs ...pair) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range pairs {
		n.Content = append(n.Content, p.key, p.value)
	}
	return n
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func float(v float64) *yaml.Node {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}
}

func boolean(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
}
