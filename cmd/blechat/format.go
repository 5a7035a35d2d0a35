package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/srg/blechat/internal/peripheral"
)

var (
	connectColor = color.New(color.FgGreen)
	dropColor    = color.New(color.FgRed)
	messageColor = color.New(color.FgCyan, color.Bold)
	noticeColor  = color.New(color.FgYellow)
)

// formatSignal renders a session signal as one line of shell output.
func formatSignal(sig peripheral.Signal) string {
	switch sig.Kind {
	case peripheral.SignalDeviceConnected:
		return connectColor.Sprintf("[+] %s connected", sig.Address)
	case peripheral.SignalDeviceDisconnected:
		return dropColor.Sprintf("[-] %s disconnected", sig.Address)
	case peripheral.SignalMessageReceived:
		return messageColor.Sprintf("[%s]", sig.Address) + " " + sig.Text
	case peripheral.SignalNotificationsEnabled:
		return noticeColor.Sprintf("[*] %s subscribed", sig.Address)
	case peripheral.SignalNotificationsDisabled:
		return noticeColor.Sprintf("[*] %s unsubscribed", sig.Address)
	case peripheral.SignalAdvertisingStarted:
		return connectColor.Sprint("Advertising started")
	case peripheral.SignalAdvertisingFailed:
		return dropColor.Sprintf("Advertising failed: %s", sig.Reason)
	default:
		return fmt.Sprintf("%s %s", sig.Kind, sig.Address)
	}
}

// formatReport summarizes a broadcast for the shell.
func formatReport(r peripheral.BroadcastReport) string {
	switch r.Outcome {
	case peripheral.OutcomeNoConnections:
		return noticeColor.Sprint("No connected devices")
	case peripheral.OutcomeNoSubscribers:
		return noticeColor.Sprint("No devices have enabled notifications")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sent to %d device(s)", len(r.Delivered))
	if len(r.Stale) > 0 {
		fmt.Fprintf(&sb, "\n  stale: %s", joinIdentities(r.Stale))
	}
	if len(r.Failed) > 0 {
		sb.WriteString("\n  ")
		sb.WriteString(dropColor.Sprintf("failed: %s", joinIdentities(r.Failed)))
	}
	return sb.String()
}

// formatStatus renders the session state and both registries.
func formatStatus(session *peripheral.Session) string {
	conns := session.Connections()
	subs := session.Subscribers()

	var sb strings.Builder
	fmt.Fprintf(&sb, "State:       %s\n", session.State())
	fmt.Fprintf(&sb, "Connected:   %d%s\n", len(conns), listSuffix(conns))
	fmt.Fprintf(&sb, "Subscribed:  %d%s\n", len(subs), listSuffix(subs))
	fmt.Fprintf(&sb, "Read value:  %q", string(session.ReadValue()))
	return sb.String()
}

func listSuffix(ids []peripheral.DeviceIdentity) string {
	if len(ids) == 0 {
		return ""
	}
	return " (" + joinIdentities(ids) + ")"
}

func joinIdentities(ids []peripheral.DeviceIdentity) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
