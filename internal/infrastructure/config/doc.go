// Package config loads and validates Commlink configuration.
//
// Configuration is YAML with environment variable overrides for
// credentials. A minimal file declaring one MQTT instance and one TCP
// instance:
//
//	logging:
//	  level: "info"
//	  format: "json"
//
//	protocols:
//	  - name: "plant-bus"
//	    method: "mqtt"
//	    mqtt:
//	      broker:
//	        host: "127.0.0.1"
//	        port: 1883
//	        client_id: "commlink-plant"
//	      qos: 1
//	    session:
//	      reconnect:
//	        initial_delay: 1
//	        max_delay: 60
//	        multiplier: 2
//	        max_attempts: 0
//	      queue_capacity: 1000
//	      mode: "background"
//
//	  - name: "scale-link"
//	    method: "tcp"
//	    tcp:
//	      host: "192.168.1.40"
//	      port: 5000
//	    packet:
//	      head: "\x02"
//	      tail: "\x03"
//
// Environment overrides: COMMLINK_LOG_LEVEL, COMMLINK_MQTT_USERNAME,
// COMMLINK_MQTT_PASSWORD. Credentials should come from the environment
// rather than the file.
package config
