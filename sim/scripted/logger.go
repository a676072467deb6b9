package scripted

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "scripted")
