package task

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim/citysim"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/input"
)

const (
	SelfName = "tsc" // 本程序在模拟任务集群中的名字
)

var log = logrus.WithField("module", "task")

// waitForServerReady 等待服务器就绪
// 功能：通过HTTP请求检查服务器是否已经启动并可以响应
// 参数：addr-服务器地址，retryCount-重试次数，interval-重试间隔
// 返回：错误信息，如果服务器就绪则返回nil
func waitForServerReady(addr string, retryCount int, interval time.Duration) error {
	client := &http.Client{
		Timeout: interval,
	}
	for i := 0; i < retryCount; i++ {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server `%v` did not become ready after %d retries", addr, retryCount)
}

// Context 信控任务上下文
// 功能：包含一次信控任务的所有变量和状态
// 说明：路口运行时由本程序维护，城市仿真器通过RPC提供车辆状态并执行下发的信号灯程序
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 辅助程序，处理与syncer的步进同步
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	// 缓存文件夹
	cacheDir string

	// 路口管理器
	junctionManager *junction.Manager
	// 城市仿真器适配
	simulator *citysim.Simulator

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 用于初始化的输入
	initRes *input.Input
	// 统计
	stats *Stats
}

// NewContext 创建信控任务上下文
// 参数：
//   - job: 任务名称
//   - simAddr: 城市仿真器地址
//   - cacheDir: 缓存目录
//   - c: 配置对象
//   - sidecar: syncer sidecar实例
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 补全配置默认值
// 2. 加载地图与路口描述，构建所有受控路口
// 3. 等待城市仿真器就绪，创建RPC客户端与适配器
// 4. 启动sidecar服务（如果需要）
func NewContext(
	job string,
	simAddr string,
	cacheDir string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		job:            job,
		cacheDir:       cacheDir,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		stats:          NewStats(),
	}
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("invalid config: %v", err)
	}
	ctx.runtimeConfig = rc

	// 下载所有启动所需的数据
	ctx.initRes = input.Init(rc.All, ctx.cacheDir)

	ctx.junctionManager = junction.NewManager()
	if err := ctx.junctionManager.Init(ctx.initRes.Descriptions, JunctionOptions(rc)); err != nil {
		log.Panicf("failed to build junctions: %v", err)
	}
	log.Infof("Junction: %v", len(ctx.junctionManager.Junctions()))

	if err := waitForServerReady(simAddr, 30, time.Second); err != nil {
		log.Panicf("city simulator is not ready: %v", err)
	}
	ctx.simulator = citysim.New(
		citysim.NewClients(http.DefaultClient, simAddr),
		ctx.sidecar,
		ctx.junctionManager,
		rc.All.Override.StationarySpeed,
		citysim.Options{Step: rc.C.Step, TypeLabel: rc.All.Sim.TypeLabel},
	)

	// sidecar协程，用于提供gRPC服务
	if startSidecarServe {
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}
	return ctx
}

// JunctionOptions 由运行时配置得到路口运行时参数
func JunctionOptions(rc *config.RuntimeConfig) junction.Options {
	return junction.Options{
		Mode:       rc.All.Signal.Mode,
		Thresholds: rc.All.Override,
		Timing:     rc.All.Signal.Timing,
	}
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) JunctionManager() *junction.Manager {
	return ctx.junctionManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Stats() *Stats {
	return ctx.stats
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.sidecar.Close()
	// wait for graceful stop
	<-ctx.sidecarCloseCh
	ctx.closed.Store(true)
}
