// replay 用回放场景驱动决策周期聚合器，由外部策略给出候选相位，输出奖励统计
package main

import (
	"context"
	"flag"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/env"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/policy"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim/scripted"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/task"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
)

var (
	configPath   = flag.String("config", "", "config file path")
	scenarioPath = flag.String("scenario", "", "scenario file path (overrides input.scenario)")
	junctionID   = flag.String("junction", "", "junction to control (empty means the first one in the scenario)")
	policyName   = flag.String("policy", "random", "external policy: random|cycle|queue|fixed:<phase>|explore:<epsilon>:<policy>")
	episodes     = flag.Int("episodes", 1, "number of episodes")
	seed         = flag.Uint64("seed", 0, "random seed of the policy")
	logLevel     = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error）")

	log = logrus.WithField("module", "replay")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Panicf("invalid log.level: %v", err)
	}
	logrus.SetLevel(level)

	var c config.Config
	if *configPath != "" {
		if c, err = config.Load(*configPath); err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else {
		// 没有配置文件时使用Delegate模式，候选相位完全由策略给出
		c.Signal.Mode = trafficlight.Delegate
	}
	if *scenarioPath != "" {
		c.Input.Scenario = *scenarioPath
	}
	if c.Input.Scenario == "" {
		log.Panic("scenario must be specified")
	}
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("invalid config: %v", err)
	}

	s, err := scripted.LoadScenario(rc.All.Input.Scenario)
	if err != nil {
		log.Panicf("scenario load err: %v", err)
	}
	simulator, err := scripted.New(s, task.JunctionOptions(rc))
	if err != nil {
		log.Panicf("scenario build err: %v", err)
	}
	id := entity.JunctionID(*junctionID)
	if id == "" {
		id = s.Junctions[0].Junction
	}
	j, err := simulator.Junctions().GetOrError(id)
	if err != nil {
		log.Panicf("%v", err)
	}
	reward, err := env.ParseRewardMode(rc.All.Env.Reward)
	if err != nil {
		log.Panicf("%v", err)
	}
	e, err := env.New(simulator, j.Controller(), env.Options{
		HistoryLength: rc.All.Env.HistoryLength,
		Reward:        reward,
		MaxSubTicks:   rc.All.Env.MaxSubTicks,
	})
	if err != nil {
		log.Panicf("%v", err)
	}
	p, err := policy.New(*policyName, j.Topology(), *seed)
	if err != nil {
		log.Panicf("%v", err)
	}

	log.Infof("junction %s: %d movements, %d phases, mode %s, policy %s",
		id, len(j.Topology().Movements()), j.Topology().NumPhases(), j.Controller().Mode(), *policyName)
	summary, err := run(context.Background(), e, p, j.Topology().NumPhases(), *episodes)
	if err != nil {
		log.Panicf("replay failed: %v", err)
	}
	log.Infof("%s", summary)
}
