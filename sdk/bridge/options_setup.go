package bridge

import (
	"github.com/leandrodaf/notebridge/internal/eventqueue"
	"github.com/leandrodaf/notebridge/internal/listener"
	"github.com/leandrodaf/notebridge/internal/logger"
	"github.com/leandrodaf/notebridge/internal/server"
	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// applyDefaultOptions sets default values for BridgeOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify BridgeOptions.
//
// Returns:
//   - contracts.BridgeOptions: the finalized options with defaults applied.
func applyDefaultOptions(opts ...contracts.Option) contracts.BridgeOptions {
	options := &contracts.BridgeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	if options.Address == "" {
		options.Address = server.DefaultAddress
	}
	if options.PollInterval <= 0 {
		options.PollInterval = listener.DefaultPollInterval
	}
	if options.SendInterval < 0 {
		options.SendInterval = 0
	} else if options.SendInterval == 0 {
		options.SendInterval = server.DefaultSendInterval
	}
	if options.ChannelCapacity <= 0 {
		options.ChannelCapacity = eventqueue.DefaultCapacity
	}
	if options.ReadBufferSize <= 0 {
		options.ReadBufferSize = listener.DefaultReadBufferSize
	}
	if options.HandshakeTimeout == 0 {
		options.HandshakeTimeout = server.DefaultHandshakeTimeout
	}
	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: "Note Bridge"}
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options
}
