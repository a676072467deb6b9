package citysim

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "citysim")
