package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/imu_subscriber/internal/config"
	"github.com/relabs-tech/imu_subscriber/internal/output"
	"github.com/relabs-tech/imu_subscriber/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// latestSamples keeps the most recent sample of every stream and fans new
// samples out to live websocket watchers.
type latestSamples struct {
	mu       sync.RWMutex
	samples  map[stream.StreamKey]stream.DeviceSample
	watchers map[chan stream.DeviceSample]struct{}
}

func newLatestSamples() *latestSamples {
	return &latestSamples{
		samples:  make(map[stream.StreamKey]stream.DeviceSample),
		watchers: make(map[chan stream.DeviceSample]struct{}),
	}
}

func (l *latestSamples) Put(s stream.DeviceSample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples[s.Key()] = s
	for ch := range l.watchers {
		select {
		case ch <- s:
		default: // slow watcher, drop
		}
	}
}

// Watch registers a watcher; call the returned func to unregister.
func (l *latestSamples) Watch() (<-chan stream.DeviceSample, func()) {
	ch := make(chan stream.DeviceSample, 64)
	l.mu.Lock()
	l.watchers[ch] = struct{}{}
	l.mu.Unlock()

	return ch, func() {
		l.mu.Lock()
		delete(l.watchers, ch)
		l.mu.Unlock()
	}
}

func (l *latestSamples) Get(k stream.StreamKey) (stream.DeviceSample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.samples[k]
	return s, ok
}

// All returns the samples sorted by bus, then device.
func (l *latestSamples) All() []stream.DeviceSample {
	l.mu.RLock()
	out := make([]stream.DeviceSample, 0, len(l.samples))
	for _, s := range l.samples {
		out = append(out, s)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Bus != out[j].Bus {
			return out[i].Bus < out[j].Bus
		}
		return out[i].Device < out[j].Device
	})
	return out
}

func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the web server")
	}

	latest := newLatestSamples()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to every stream and keep the latest sample of each
	topic := output.Wildcard(cfg.TopicIMUPrefix)
	token := client.Subscribe(topic, 0, sampleHandler("web", latest.Put))
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", topic)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, newWebMux(latest, "web"))
}

// newWebMux serves the JSON API and, from staticDir, the static files.
func newWebMux(latest *latestSamples, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// JSON API endpoint: latest sample of every stream
	mux.HandleFunc("GET /api/imu", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, latest.All())
	})

	// JSON API endpoint: latest sample of one stream
	mux.HandleFunc("GET /api/imu/{bus}/{device}", func(w http.ResponseWriter, r *http.Request) {
		k := stream.StreamKey{Bus: r.PathValue("bus"), Device: r.PathValue("device")}
		s, ok := latest.Get(k)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s)
	})

	// Live feed: every sample as it arrives
	mux.HandleFunc("GET /ws/imu", func(w http.ResponseWriter, r *http.Request) {
		handleLiveWS(w, r, latest)
	})

	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// handleLiveWS streams samples to one websocket client until it goes away.
func handleLiveWS(w http.ResponseWriter, r *http.Request, latest *latestSamples) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	samples, unwatch := latest.Watch()
	defer unwatch()

	// Reader: only needed to notice the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case s := <-samples:
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
