package server

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvDBURI overrides dburi in config files.
const EnvDBURI = "KNITMETA_DBURI"

var ErrMisconfigured = errors.New("misconfigured")

// load server config from a file.
//
// When the environment variable KNITMETA_DBURI is set, it is used as dburi.
func LoadServerConfig(filepath string) (*ServerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content, WithDBURI(os.Getenv(EnvDBURI)))
}

type Override func(*ServerConfigMarshall)

// WithDBURI replaces dburi, unless uri is empty.
func WithDBURI(uri string) Override {
	return func(s *ServerConfigMarshall) {
		if uri != "" {
			s.DBURI = uri
		}
	}
}

func Unmarshal(conf []byte, overrides ...Override) (out *ServerConfig, err error) {
	_out := &ServerConfigMarshall{}
	if err := yaml.Unmarshal(conf, _out); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(_out)
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrMisconfigured, r)
		}
	}()
	return TrySeal[*ServerConfig](_out), nil
}
