package main

import (
	"encoding/json"
	"flag"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HostPort string `yaml:"host_port"`
	AllowAll bool   `yaml:"allow_all"`
	// Users maps usernames to passwords.
	Users map[string]string `yaml:"users"`
	// Dashboards lists the dashboard ids guest tokens are issued for; empty
	// means any.
	Dashboards []string `yaml:"dashboards"`
	// EmptyToken makes the guest token endpoint answer without a token.
	EmptyToken bool `yaml:"empty_token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Refresh  bool   `json:"refresh"`
}

type guestTokenRequest struct {
	Resources []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"resources"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

func main() {
	configPath := flag.String("conf", "superset_mock.yaml", "path to config file")
	flag.Parse()

	logger := logrus.New()

	file, err := ioutil.ReadFile(*configPath)
	if err != nil {
		logger.WithError(err).Error("unable to open config")
		return
	}

	var conf = Config{}
	err = yaml.Unmarshal(file, &conf)
	if err != nil {
		logger.WithError(err).Error("unable to parse config")
		return
	}

	// access tokens issued by this process
	issued := map[string]string{}
	var mutex sync.Mutex

	http.HandleFunc("/api/v1/security/login", func(w http.ResponseWriter, r *http.Request) {
		request := new(loginRequest)
		if err := json.NewDecoder(r.Body).Decode(request); err != nil {
			logger.WithError(err).Error("unable to parse request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log := logger.
			WithField("username", request.Username).
			WithField("provider", request.Provider)

		password, ok := conf.Users[request.Username]
		if !conf.AllowAll && (!ok || password != request.Password || request.Provider != "db") {
			w.WriteHeader(http.StatusUnauthorized)
			log.Info("login Unauthorized")
			return
		}

		accessToken := uuid.New().String()
		mutex.Lock()
		issued[accessToken] = request.Username
		mutex.Unlock()
		writeJSON(w, map[string]string{"access_token": accessToken})
		log.Info("login OK")
	})

	http.HandleFunc("/api/v1/security/guest_token", func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		mutex.Lock()
		user, ok := issued[bearer]
		mutex.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			logger.Info("guest token Unauthorized")
			return
		}

		request := new(guestTokenRequest)
		if err := json.NewDecoder(r.Body).Decode(request); err != nil || len(request.Resources) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			logger.Info("guest token Bad Request")
			return
		}
		log := logger.
			WithField("user", user).
			WithField("dashboard", request.Resources[0].ID)

		if !allowed(conf.Dashboards, request.Resources[0].ID) {
			w.WriteHeader(http.StatusForbidden)
			log.Info("guest token Forbidden")
			return
		}

		if conf.EmptyToken {
			writeJSON(w, map[string]string{})
			log.Info("guest token empty")
			return
		}

		writeJSON(w, map[string]string{"token": "guest-" + uuid.New().String()})
		log.Info("guest token OK")
	})

	logger.Info("start listen & serve @ ", conf.HostPort)

	_ = http.ListenAndServe(conf.HostPort, nil)
}

func allowed(dashboards []string, id string) bool {
	if len(dashboards) == 0 {
		return true
	}
	for _, dashboard := range dashboards {
		if dashboard == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	raw, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
