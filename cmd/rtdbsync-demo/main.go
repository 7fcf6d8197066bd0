// Command rtdbsync-demo drives a single in-process synctree.Tree end to end
// against in-memory storage, printing every emitted Event, in the spirit of
// gazette's tool/ one-shot command-line drivers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/jsayol/firebase-js-sdk/cachepolicy"
	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/kvstore"
	"github.com/jsayol/firebase-js-sdk/metrics"
	"github.com/jsayol/firebase-js-sdk/persistence"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/synctree"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

var Config = new(struct {
	LogLevel    string `long:"log-level" default:"info" description:"logrus level: debug, info, warn, error"`
	MetricsAddr string `long:"metrics-addr" description:"if set, serve Prometheus metrics on this address, e.g. :2112"`
})

type cmdRun struct {
	Path string `long:"path" default:"rooms/lobby/messages" description:"path to register a listener on and write to"`
}

// demoListenProvider fakes a backend: it logs the queries it's asked to
// (un)watch and immediately reports every listen complete, asynchronously so
// as not to re-enter Tree's lock from inside StartListening.
type demoListenProvider struct{}

func (demoListenProvider) StartListening(q query.Query, tag *int, hashFn func() string, onComplete func(synctree.ListenStatus) []event.Event) []event.Event {
	log.WithField("query", q.String()).Info("demo backend: listen started")
	go func() {
		var events = onComplete(synctree.ListenStatus{OK: true})
		deliverAndLog(events)
	}()
	return nil
}

func (demoListenProvider) StopListening(q query.Query, tag *int) {
	log.WithField("query", q.String()).Info("demo backend: listen stopped")
}

// demoWriteSender logs the restart-recovery re-sends RestoreUserWrites
// issues; a real transport would re-submit these writes over the wire.
type demoWriteSender struct{}

func (demoWriteSender) SendWrite(writeID int64, path treepath.Path, node treenode.Node) {
	log.WithFields(log.Fields{"writeId": writeID, "path": path.String()}).Info("demo backend: re-sent restored overwrite")
}

func (demoWriteSender) SendMerge(writeID int64, path treepath.Path, children map[string]treenode.Node) {
	log.WithFields(log.Fields{"writeId": writeID, "path": path.String()}).Info("demo backend: re-sent restored merge")
}

func deliverAndLog(events []event.Event) {
	for _, e := range events {
		logEvent(e)
		if cb, ok := e.Registration.(*event.CallbackRegistration); ok {
			cb.Deliver(e)
		}
	}
}

func logEvent(e event.Event) {
	var fields = log.Fields{"type": e.Type, "path": e.Path.String()}
	if e.Error != nil {
		fields["error"] = e.Error
	}
	log.WithFields(fields).Info("event")
}

func (cmd *cmdRun) Execute([]string) error {
	var ctx = context.Background()
	var path = treepath.Parse(cmd.Path)

	var serverStore, err = persistence.NewServerCacheStore(kvstore.NewMemory(), 4096)
	if err != nil {
		return err
	}
	var users = persistence.NewUserWriteStore(kvstore.NewMemory())
	var queries = persistence.NewTrackedQueryStore(kvstore.NewMemory())
	var manager = persistence.NewManager(serverStore, users, queries, cachepolicy.NewLRU())
	defer manager.Close()

	var tree = synctree.New(demoListenProvider{}, manager)

	var restoreEvents, nextWriteID, restoreErr = tree.RestoreUserWrites(ctx, demoWriteSender{})
	if restoreErr != nil {
		return restoreErr
	}
	deliverAndLog(restoreEvents)

	var reg = &event.CallbackRegistration{ID: "demo", Callback: logEvent}
	deliverAndLog(tree.AddEventRegistration(ctx, query.DefaultAtPath(path), reg))

	var overwriteEvents, applyErr = tree.ApplyServerOverwrite(ctx, path, treenode.NodeFrom(map[string]interface{}{
		"welcome": "hi",
	}))
	if applyErr != nil {
		return applyErr
	}
	deliverAndLog(overwriteEvents)

	var events, writeErr = tree.ApplyUserOverwrite(ctx, path.Child("latest"), treenode.NodeFrom("hello from rtdbsync-demo"), nextWriteID, true)
	if writeErr != nil {
		return writeErr
	}
	deliverAndLog(events)

	var ackEvents, ackErr = tree.AckUserWrite(ctx, nextWriteID, false)
	if ackErr != nil {
		return ackErr
	}
	deliverAndLog(ackEvents)

	deliverAndLog(tree.RemoveEventRegistration(query.DefaultAtPath(path), reg, nil))
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	if _, err := parser.AddCommand("run", "Run the scripted demo",
		"Registers a listener, applies a server overwrite and a user write, then tears down.", &cmdRun{}); err != nil {
		log.WithError(err).Fatal("failed to register run command")
	}

	if lvl, err := log.ParseLevel(Config.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if Config.MetricsAddr != "" {
		metrics.MustRegister(prometheus.DefaultRegisterer)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(Config.MetricsAddr, nil); err != nil {
				log.WithError(err).Warn("metrics server exited")
			}
		}()
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
