// Package config loads wolfnet.json, the configuration file of the wolfnet
// command.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "listen": ":27960",
//	    "hostname": "arena",
//	    "maxClients": 16,
//	    "fps": 20,
//	    "timeout": "40s"
//	  },
//	  "net": {
//	    "latency": "50ms",
//	    "loss": 0.02
//	  },
//	  "http": {
//	    "addr": ":8080",
//	    "websocket": true,
//	    "trustedProxies": ["10.0.0.0/8"]
//	  },
//	  "demo": {
//	    "dir": "demos",
//	    "record": 0
//	  },
//	  "telemetry": {
//	    "metrics": true
//	  }
//	}
//
// Settings left out keep their defaults. The command layers .env files,
// WOLFNET_* environment variables and flags on top.
package config
