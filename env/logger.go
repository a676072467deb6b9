package env

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "env")
