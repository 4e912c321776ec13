package main

import (
	"fmt"
	"path/filepath"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"
)

const notifyInterface = "org.freedesktop.Notifications"
const notifyObjectPath = "/org/freedesktop/Notifications"

// Notifier sends desktop notifications over the session bus. A nil Notifier
// is valid and does nothing, notifications are never load bearing.
type Notifier struct {
	conn *dbus.Conn
}

func NewNotifier() (*Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed connecting to session bus: %w", err)
	}

	return &Notifier{conn: conn}, nil
}

func (n *Notifier) send(summary, body string) {
	if n == nil {
		return
	}

	obj := n.conn.Object(notifyInterface, notifyObjectPath)
	call := obj.Call(notifyInterface+".Notify", 0,
		"ncmdump", // app name
		uint32(0), // replaces id
		"",        // icon
		summary, body,
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		int32(-1),                 // default timeout
	)
	if call.Err != nil {
		log.WithError(call.Err).Warnf("failed sending notification")
	}
}

// ConversionDone notifies the outcome of one watched file conversion.
func (n *Notifier) ConversionDone(path string, res ConvertResult) {
	if res.Err != nil {
		n.send("Conversion failed", fmt.Sprintf("%s: %s", filepath.Base(path), res.Err))
		return
	}

	n.send("Converted", filepath.Base(res.Output))
}

// BatchDone notifies the summary of one batch run.
func (n *Notifier) BatchDone(converted, failed int) {
	if failed > 0 {
		n.send("Conversion finished", fmt.Sprintf("%d files converted, %d failed", converted, failed))
		return
	}

	n.send("Conversion finished", fmt.Sprintf("%d files converted", converted))
}
