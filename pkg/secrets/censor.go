package secrets

import (
	"bytes"
	"encoding/base64"
	"sync"

	"github.com/sirupsen/logrus"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DynamicCensor keeps a list of censored secrets that is dynamically updated.
// Used when the list of secrets to censor is updated during the execution of
// the program and cannot be determined in advance. Access to the list of
// secrets is internally synchronized.
type DynamicCensor struct {
	sync.RWMutex
	secrets sets.String
}

func NewDynamicCensor() DynamicCensor {
	return DynamicCensor{
		secrets: sets.NewString(),
	}
}

// AddSecrets adds the content of one or more secrets to the censor list,
// along with their base64 forms, which otherwise leak through encoded
// payloads and dumped requests.
func (c *DynamicCensor) AddSecrets(s ...string) {
	c.Lock()
	defer c.Unlock()
	for _, secret := range s {
		if secret == "" {
			continue
		}
		c.secrets.Insert(secret, base64.StdEncoding.EncodeToString([]byte(secret)))
	}
}

// Censor replaces every registered secret in data with a mask of the same
// length.
func (c *DynamicCensor) Censor(data *[]byte) {
	c.RLock()
	defer c.RUnlock()
	for _, secret := range c.secrets.UnsortedList() {
		*data = bytes.ReplaceAll(*data, []byte(secret), bytes.Repeat([]byte("X"), len(secret)))
	}
}

// Formatter wraps f so that no registered secret survives into formatted
// log output.
func (c *DynamicCensor) Formatter(f logrus.Formatter) logrus.Formatter {
	return &censoringFormatter{delegate: f, censor: c}
}

type censoringFormatter struct {
	delegate logrus.Formatter
	censor   *DynamicCensor
}

func (f *censoringFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	serialized, err := f.delegate.Format(entry)
	if err != nil {
		return nil, err
	}
	f.censor.Censor(&serialized)
	return serialized, nil
}
