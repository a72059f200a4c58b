// Package iothub implements the Azure IoT Hub MQTT device protocol for
// Azimuth Device Core.
//
// This package manages:
//   - Connection-string parsing into immutable device credentials
//   - SAS (Shared Access Signature) token generation and renewal
//   - MQTT session lifecycle with bounded connect/reconnect retries
//   - Topic-based classification of inbound hub traffic
//   - Device-twin request/response correlation
//
// # Architecture
//
// The package is layered leaf-to-root: Credentials and Token are pure
// value types, the TwinTracker is a small request state machine, and
// the Session owns the transport lifecycle. The Client facade wires
// them together and dispatches application callbacks.
//
//	Client → Session → Transport (paho-backed in production)
//	       → TwinTracker, Classify, Topics
//
// The Session talks to the broker through the Transport interface so
// retry and reconnect behaviour is testable without a live hub.
//
// # Concurrency Model
//
// The protocol core is single-threaded and cooperative: all activity
// happens during explicit Loop invocations by the owning caller. A
// Client instance exclusively owns its session, tracker, and
// credentials; there is no internal locking. Embedding in a concurrent
// program requires serializing access through one owning goroutine or
// an external mutex — never share an instance lock-free.
//
// # Security Considerations
//
//   - SAS tokens are time-limited HMAC-SHA256 signatures; they are
//     regenerated before expiry using the configured renewal margin.
//   - The TLS reachability probe prefers full certificate validation.
//     The insecure diagnostic fallback can and should be disabled in
//     hardened deployments (tls.allow_insecure_fallback: false).
//   - Message payloads are opaque to this package; no JSON is parsed.
//
// # Usage
//
//	creds, err := iothub.ParseConnectionString(connStr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := iothub.New(creds, iothub.Options{Logger: log})
//	client.OnC2DMessage(func(topic string, payload []byte) {
//	    log.Info("c2d", "topic", topic)
//	})
//
//	if err := client.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    client.Loop()
//	    time.Sleep(100 * time.Millisecond)
//	}
package iothub
