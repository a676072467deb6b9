package citysim

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"git.fiblab.net/sim/protos/v2/go/city/person/v2/personv2connect"
)

// PersonClient 人员服务中用到的接口
type PersonClient interface {
	GetPersons(context.Context, *connect.Request[personv2.GetPersonsRequest]) (*connect.Response[personv2.GetPersonsResponse], error)
}

// TrafficLightClient 信号灯服务中用到的接口
type TrafficLightClient interface {
	SetTrafficLight(context.Context, *connect.Request[mapv2.SetTrafficLightRequest]) (*connect.Response[mapv2.SetTrafficLightResponse], error)
}

// ClockClient 时钟服务中用到的接口
type ClockClient interface {
	Now(context.Context, *connect.Request[clockv1.NowRequest]) (*connect.Response[clockv1.NowResponse], error)
}

// Stepper 与仿真器步进同步的接口，由syncer.Sidecar实现
type Stepper interface {
	// NotifyStepReady 通知本步的准备阶段已完成
	NotifyStepReady()
	// Step 结束本步并等待下一步开始，close为true时请求结束整个模拟，返回是否已关闭
	Step(close bool) bool
}

// Clients 访问城市仿真器的RPC客户端
type Clients struct {
	Persons       PersonClient
	TrafficLights TrafficLightClient
	Clock         ClockClient
}

// NewClients 创建连接到城市仿真器的connect客户端
// 参数：httpClient-HTTP客户端，addr-仿真器地址（如http://localhost:51102）
func NewClients(httpClient connect.HTTPClient, addr string, opts ...connect.ClientOption) Clients {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Clients{
		Persons:       personv2connect.NewPersonServiceClient(httpClient, addr, opts...),
		TrafficLights: mapv2connect.NewTrafficLightServiceClient(httpClient, addr, opts...),
		Clock:         clockv1connect.NewClockServiceClient(httpClient, addr, opts...),
	}
}
