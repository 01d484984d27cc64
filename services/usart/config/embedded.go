package config

// Board overrides, keyed by board name. Populate at build time (e.g. via code
// generation) or manually during development.

const cfgDiscoveryF407 = `{
  "usart": [
    {"instance": 1, "baud": 115200, "rx_mode": "interrupt", "tx_mode": "polled"}
  ]
}`

const cfgPicoLoopback = `{
  "usart": [
    {"instance": 0, "baud": 9600, "tx": {"port": "A", "pin": 0}, "rx": {"port": "A", "pin": 1},
     "rx_mode": "interrupt", "tx_mode": "interrupt"},
    {"instance": 1, "baud": 9600, "tx": {"port": "A", "pin": 4}, "rx": {"port": "A", "pin": 5},
     "rx_mode": "polled", "tx_mode": "polled"}
  ]
}`

var embeddedConfigs = map[string][]byte{
	"stm32f407-disco": []byte(cfgDiscoveryF407),
	"pico":            []byte(cfgPicoLoopback),
}
