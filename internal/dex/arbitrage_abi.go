package dex

import "github.com/ethereum/go-ethereum/accounts/abi"

// Entry point of the deployed flash-loan arbitrage contract.
const flashArbitrageABIJSON = `[
  {
    "inputs": [
      {"internalType": "address[]", "name": "_routerPath", "type": "address[]"},
      {"internalType": "address[]", "name": "_tokenPath", "type": "address[]"},
      {"internalType": "uint24", "name": "_fee", "type": "uint24"},
      {"internalType": "uint256", "name": "_flashAmount", "type": "uint256"}
    ],
    "name": "executeTrade",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var flashArbitrageABI = lazyABI(flashArbitrageABIJSON)

// FlashArbitrageABI returns the parsed arbitrage contract ABI.
func FlashArbitrageABI() (abi.ABI, error) { return flashArbitrageABI() }
