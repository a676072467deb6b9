package input

import (
	"context"
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/protobuf/proto"
)

// Input 输入数据
type Input struct {
	Map          *mapv2.Map             // 地图（可为nil）
	Descriptions []topology.Description // 受控路口的静态描述
}

// Init 加载输入数据，出错时panic
// 参数：config-配置对象，cacheDir-缓存目录
// 返回：加载完成的输入数据
func Init(config config.Config, cacheDir string) *Input {
	res, err := Load(config, cacheDir)
	if err != nil {
		log.Panicf("failed to load input: %v", err)
	}
	return res
}

// Load 加载输入数据
// 功能：加载地图并得到所有受控路口的静态描述
// 参数：config-配置对象，cacheDir-缓存目录
// 返回：输入数据，错误
// 算法说明：
// 1. 地图：优先从文件加载，否则从MongoDB（带缓存）下载
// 2. 路口描述：优先读取YAML文件，否则由地图中有信控的路口转换得到
// 3. 由地图转换时，配置中显式指定的路口转换失败返回错误，其余路口转换失败时跳过并告警
func Load(config config.Config, cacheDir string) (*Input, error) {
	useCache := preCheckCache(cacheDir)
	if !useCache {
		cacheDir = ""
	}
	res := &Input{}

	if p := config.Input.Map; p != nil {
		if p.File != "" {
			var m mapv2.Map
			if err := protoutil.UnmarshalFromFile(&m, p.File); err != nil {
				return nil, fmt.Errorf("failed to load map from file: %w", err)
			}
			res.Map = &m
		} else {
			var client *mongo.Client
			if config.Input.URI != "" {
				client = mongoutil.NewClient(config.Input.URI)
				defer client.Disconnect(context.Background())
			}
			res.Map = mustLoad[mapv2.Map](client, *p, cacheDir, nil, nil)
		}
		log.Infof("Lane: %v", len(res.Map.Lanes))
		log.Infof("Road: %v", len(res.Map.Roads))
		log.Infof("Junction: %v", len(res.Map.Junctions))
	}

	if config.Input.Junctions != "" {
		descs, err := LoadDescriptions(config.Input.Junctions)
		if err != nil {
			return nil, err
		}
		res.Descriptions = descs
	} else if res.Map != nil {
		descs, err := DescriptionsFromMap(res.Map, config.Control.Junctions)
		if err != nil {
			return nil, err
		}
		res.Descriptions = descs
	} else {
		return nil, errors.New("neither junction descriptions nor map is configured")
	}
	return res, nil
}

// DescriptionsFromMap 由地图生成路口描述
// 参数：m-地图，ids-指定的路口（为空则取全部至少有两个可用相位的路口）
// 返回：路口描述列表
func DescriptionsFromMap(m *mapv2.Map, ids []int32) ([]topology.Description, error) {
	explicit := len(ids) > 0
	byID := lo.KeyBy(m.Junctions, func(j *mapv2.Junction) int32 { return j.Id })
	junctions, failed := utils.Find(byID, m.Junctions, ids)
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: junctions %v not found in map", topology.ErrConfiguration, failed)
	}
	if !explicit {
		junctions = lo.Filter(junctions, func(j *mapv2.Junction, _ int) bool { return len(j.Phases) >= 2 })
	}
	descs := make([]topology.Description, 0, len(junctions))
	for _, j := range junctions {
		desc, err := topology.FromMap(m, j.Id)
		if err == nil && len(desc.Movements) == 0 {
			err = fmt.Errorf("%w: junction %d has no signalized movement", topology.ErrConfiguration, j.Id)
		}
		if err != nil {
			if explicit {
				return nil, err
			}
			log.Warnf("skip junction %d: %v", j.Id, err)
			continue
		}
		descs = append(descs, desc)
	}
	log.Infof("%d junctions converted from map", len(descs))
	return descs, nil
}

// mustLoad 必须加载数据（泛型函数）
// 功能：从MongoDB或缓存中加载数据
// 参数：client-MongoDB客户端，inputPath-输入路径配置，cacheDir-缓存目录，classNameMapper-类名映射器，handler-数据处理函数，opts-查询选项
// 返回：加载的数据对象
func mustLoad[T any, PT interface {
	proto.Message
	*T
}](
	client *mongo.Client,
	inputPath config.InputPath,
	cacheDir string,
	classNameMapper func(string) string,
	handler func(className string, pb any, rawBson bson.Raw) error,
	opts ...*options.FindOptions,
) (res PT) {
	var downloadFunc func() PT
	var err error
	if !inputPath.OnlyCache {
		if client == nil {
			log.Panicf("no mongo uri to fetch %s.%s", inputPath.DB, inputPath.Col)
		}
		coll := mongoutil.GetMongoColl(client, inputPath)
		downloadFunc = func() PT {
			pb, errs := mongoutil.DownloadPbFromMongo[T, PT](context.Background(), coll, classNameMapper, handler, opts...)
			if len(errs) > 0 {
				for _, err := range errs {
					log.Errorf("failed to download: %v", err)
				}
				log.Panicln("failed to download")
			}
			return pb
		}
	}
	log.Infof("start fetching from %s.%s", inputPath.DB, inputPath.Col)
	res, err = cache.LoadWithCache(cacheDir, inputPath, downloadFunc)
	if err != nil {
		log.Panicf("failed to load with cache: %v", err)
	}
	log.Infof("finish fetching from %s.%s", inputPath.DB, inputPath.Col)
	return
}
