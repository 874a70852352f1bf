// Package config loads the serialmock daemon configuration.
//
// The configuration is a YAML file, conventionally serialmock.yaml:
//
//	repeatFile: protocol.txt
//	watch: true
//	watchInterval: 500ms
//	debounce: 250ms
//	seed: 0
//	log:
//	  level: info
//	  format: text
//	tcp:
//	  enabled: true
//	  address: ":7000"
//	  gapTolerance: 20ms
//	websocket:
//	  enabled: false
//	  address: ":7001"
//	  path: /ws
//	mqtt:
//	  enabled: false
//	  address: ":1883"
//	  requestTopic: serial/rx
//	  responseTopic: serial/tx
//
// The document is checked against an embedded JSON schema before it is
// decoded, then Validate applies the checks a schema cannot express.
// A relative repeatFile is resolved against the directory of the
// configuration file. SERIALMOCK_REPEAT_FILE overrides repeatFile.
package config
