package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/gorilla/websocket"

	"gihan9a/morphcast/internal/utils"
	"gihan9a/morphcast/pkg/morphproto"
)

const MorphCtlVersion = "0.1.0"

const defaultAddr = "http://localhost:3000"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(`Morph control.

Batch files are JSON, or YAML when named *.yaml or *.yml.

Usage:
    morphctl send [--addr=<addr>] [--wait] [--timeout=<timeout>] <file>
    morphctl post [--addr=<addr>] <file>
    morphctl document [--addr=<addr>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --addr=<addr>        Server address [default: %s].
    --wait               Print the events of the batch before exiting.
    --timeout=<timeout>  How long to wait for events [default: 10s].`, defaultAddr)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], MorphCtlVersion)
	if err != nil {
		panic(err)
	}

	if send_, _ := opts.Bool("send"); send_ {
		err = send(opts)
	} else if post_, _ := opts.Bool("post"); post_ {
		err = post(opts)
	} else if document_, _ := opts.Bool("document"); document_ {
		err = document(opts)
	}
	if err != nil {
		Err.Fatal(err)
	}
}

func loadBatch(path string) (morphproto.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return morphproto.Batch{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return morphproto.DecodeBatchYAML(data)
	default:
		return morphproto.DecodeBatch(data)
	}
}

func wsURL(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// send writes the batch over websocket. With --wait the batch is tagged with
// a fresh transaction, unless it has one, and its events are printed.
func send(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	path, _ := opts.String("<file>")
	wait, _ := opts.Bool("--wait")
	timeoutStr, _ := opts.String("--timeout")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	batch, err := loadBatch(path)
	if err != nil {
		return err
	}
	if wait && batch.Transaction == "" {
		batch.Transaction = utils.NewID()
		batch.Complete = true
	}

	target, err := wsURL(addr)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(batch); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return awaitEvents(conn, batch, timeout, os.Stdout)
}

// awaitEvents prints the events of batch as JSON lines.
func awaitEvents(conn *websocket.Conn, batch morphproto.Batch, timeout time.Duration, out io.Writer) error {
	conn.SetReadDeadline(time.Now().Add(timeout))
	enc := json.NewEncoder(out)
	for seen := 0; seen < len(batch.Operations); {
		var ev morphproto.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("waiting for events: %w", err)
		}
		if ev.Index < 0 {
			enc.Encode(ev)
			return fmt.Errorf("batch rejected: %s", ev.Message)
		}
		if ev.Transaction != batch.Transaction {
			continue
		}
		enc.Encode(ev)
		seen++
	}
	return nil
}

func post(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	path, _ := opts.String("<file>")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := "application/json"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		contentType = "application/yaml"
	}
	resp, err := http.Post(strings.TrimSuffix(addr, "/")+"/batch", contentType, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	Out.Printf("%s", body)
	return nil
}

func document(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	resp, err := http.Get(strings.TrimSuffix(addr, "/") + "/document")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", resp.Status)
	}
	Err.Printf("version %s", resp.Header.Get("Version"))
	Out.Printf("%s", body)
	return nil
}
